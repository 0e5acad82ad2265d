package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const submissionSelectList = `id, entry_id, content_location, attribute_hash, extent, is_active, status,
	created_at, submitted_at`

// entryTx is the lifecycle.Tx over one locked entry.
type entryTx struct {
	tx    *sqlx.Tx
	entry *domain.Entry
}

func (t *entryTx) Entry() *domain.Entry {
	return t.entry
}

func (t *entryTx) Attributes(ctx context.Context) ([]domain.Attribute, error) {
	attrs := []domain.Attribute{}
	err := t.tx.SelectContext(ctx, &attrs,
		`SELECT name, type, position FROM entry_attributes WHERE entry_id = $1 ORDER BY position`, t.entry.ID)
	if err != nil {
		return nil, fmt.Errorf("select attributes: %w", err)
	}
	return attrs, nil
}

func (t *entryTx) ActiveSubmission(ctx context.Context) (*domain.Submission, error) {
	var sub domain.Submission
	err := t.tx.GetContext(ctx, &sub,
		`SELECT `+submissionSelectList+` FROM submissions WHERE entry_id = $1 AND is_active`, t.entry.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no active submission is a valid state
	}
	if err != nil {
		return nil, fmt.Errorf("select active submission: %w", err)
	}
	return &sub, nil
}

func (t *entryTx) Submission(ctx context.Context, id string) (*domain.Submission, error) {
	var sub domain.Submission
	err := t.tx.GetContext(ctx, &sub,
		`SELECT `+submissionSelectList+` FROM submissions WHERE id = $1 AND entry_id = $2`, id, t.entry.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select submission: %w", err)
	}
	return &sub, nil
}

func (t *entryTx) InsertSubmission(ctx context.Context, sub *domain.Submission) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO submissions (`+submissionSelectList+`)
		VALUES (:id, :entry_id, :content_location, :attribute_hash, :extent, :is_active, :status,
			:created_at, :submitted_at)`, sub)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (t *entryTx) UpdateSubmission(ctx context.Context, sub *domain.Submission) error {
	return execExpectOneRow(ctx, t.tx,
		`UPDATE submissions SET is_active = $2, status = $3 WHERE id = $1`,
		sub.ID, sub.IsActive, sub.Status)
}

func (t *entryTx) UpdateEntry(ctx context.Context, entry *domain.Entry) error {
	return execExpectOneRow(ctx, t.tx, `
		UPDATE entries
		SET status = $2, assignee_id = $3, data_created_at = $4, updated_at = $5
		WHERE id = $1`,
		entry.ID, entry.Status, entry.AssigneeID, entry.DataCreatedAt, entry.UpdatedAt)
}
