package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
)

// entrySelectList is the column list for SELECT/RETURNING on entries.
const entrySelectList = `id, name, description, status, kind, query_url, symbology,
	assignee_id, last_run_at, force_run, refresh_started_at, data_created_at,
	created_at, updated_at`

const recurrenceSelectList = `shape, interval_count, hour, minute, weekday, day_of_month`

// EntryRepository stores entries and their attributes, editors and recurrence rules.
// It is also the lifecycle.Store for entry aggregates.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

var _ lifecycle.Store = (*EntryRepository)(nil)

// Create inserts an entry together with its editors and recurrence rule.
func (r *EntryRepository) Create(ctx context.Context, entry *domain.Entry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create entry: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO entries (id, name, description, status, kind, query_url, symbology,
			assignee_id, force_run, created_at, updated_at)
		VALUES (:id, :name, :description, :status, :kind, :query_url, :symbology,
			:assignee_id, :force_run, :created_at, :updated_at)`, entry)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for _, userID := range entry.EditorIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO entry_editors (entry_id, user_id) VALUES ($1, $2)`, entry.ID, userID,
		); err != nil {
			return fmt.Errorf("insert editor %s: %w", userID, err)
		}
	}

	if err = upsertRecurrence(ctx, tx, entry.ID, entry.Recurrence); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create entry: %w", err)
	}
	return nil
}

// SetRecurrence replaces the entry's recurrence rule. A nil spec removes it.
func (r *EntryRepository) SetRecurrence(ctx context.Context, entryID string, spec *domain.RecurrenceSpec) error {
	return upsertRecurrence(ctx, r.db, entryID, spec)
}

func upsertRecurrence(ctx context.Context, db sqlx.ExecerContext, entryID string, spec *domain.RecurrenceSpec) error {
	if spec == nil {
		if _, err := db.ExecContext(ctx, `DELETE FROM entry_recurrences WHERE entry_id = $1`, entryID); err != nil {
			return fmt.Errorf("delete recurrence: %w", err)
		}
		return nil
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO entry_recurrences (entry_id, `+recurrenceSelectList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entry_id) DO UPDATE SET
			shape = EXCLUDED.shape,
			interval_count = EXCLUDED.interval_count,
			hour = EXCLUDED.hour,
			minute = EXCLUDED.minute,
			weekday = EXCLUDED.weekday,
			day_of_month = EXCLUDED.day_of_month`,
		entryID, spec.Shape, spec.Interval, spec.Hour, spec.Minute, spec.Weekday, spec.DayOfMonth,
	)
	if err != nil {
		return fmt.Errorf("upsert recurrence: %w", err)
	}
	return nil
}

// GetByID loads an entry with its editors and recurrence rule.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	var entry domain.Entry
	err := r.db.GetContext(ctx, &entry, `SELECT `+entrySelectList+` FROM entries WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if err = loadEntryDetails(ctx, r.db, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func loadEntryDetails(ctx context.Context, q sqlx.QueryerContext, entry *domain.Entry) error {
	editors := []string{}
	if err := sqlx.SelectContext(ctx, q, &editors,
		`SELECT user_id FROM entry_editors WHERE entry_id = $1 ORDER BY user_id`, entry.ID,
	); err != nil {
		return fmt.Errorf("load editors: %w", err)
	}
	entry.EditorIDs = editors

	var spec domain.RecurrenceSpec
	err := sqlx.GetContext(ctx, q, &spec,
		`SELECT `+recurrenceSelectList+` FROM entry_recurrences WHERE entry_id = $1`, entry.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		entry.Recurrence = nil
	case err != nil:
		return fmt.Errorf("load recurrence: %w", err)
	default:
		entry.Recurrence = &spec
	}
	return nil
}

// ReplaceAttributes sets the live attribute list of an entry.
func (r *EntryRepository) ReplaceAttributes(ctx context.Context, entryID string, attrs []domain.Attribute) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace attributes: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err = tx.ExecContext(ctx, `DELETE FROM entry_attributes WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("delete attributes: %w", err)
	}
	for _, a := range attrs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO entry_attributes (entry_id, name, type, position) VALUES ($1, $2, $3, $4)`,
			entryID, a.Name, a.Type, a.Position,
		); err != nil {
			return fmt.Errorf("insert attribute %s: %w", a.Name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace attributes: %w", err)
	}
	return nil
}

// refreshRow is an entry left-joined with its optional recurrence rule.
type refreshRow struct {
	domain.Entry
	Shape      *domain.RecurrenceShape `db:"shape"`
	Interval   *int                    `db:"interval_count"`
	Hour       *int                    `db:"hour"`
	Minute     *int                    `db:"minute"`
	Weekday    *int                    `db:"weekday"`
	DayOfMonth *int                    `db:"day_of_month"`
}

// ListRecurring returns every query entry that has a recurrence rule or a
// pending force-run. Entries without a rule come back with a nil Recurrence.
func (r *EntryRepository) ListRecurring(ctx context.Context) ([]domain.Entry, error) {
	var rows []refreshRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT e.id, e.name, e.description, e.status, e.kind, e.query_url, e.symbology,
			e.assignee_id, e.last_run_at, e.force_run, e.refresh_started_at, e.data_created_at,
			e.created_at, e.updated_at,
			r.shape, r.interval_count, r.hour, r.minute, r.weekday, r.day_of_month
		FROM entries e
		LEFT JOIN entry_recurrences r ON r.entry_id = e.id
		WHERE e.kind = $1
		  AND (r.entry_id IS NOT NULL OR e.force_run)
		ORDER BY e.created_at`, domain.EntryKindQuery)
	if err != nil {
		return nil, fmt.Errorf("list recurring entries: %w", err)
	}

	entries := make([]domain.Entry, 0, len(rows))
	for i := range rows {
		row := rows[i]
		entry := row.Entry
		if row.Shape != nil {
			entry.Recurrence = &domain.RecurrenceSpec{
				Shape:      *row.Shape,
				Interval:   row.Interval,
				Hour:       row.Hour,
				Minute:     row.Minute,
				Weekday:    row.Weekday,
				DayOfMonth: row.DayOfMonth,
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ActiveSubmission returns the entry's active submission, or nil if it has none.
func (r *EntryRepository) ActiveSubmission(ctx context.Context, entryID string) (*domain.Submission, error) {
	var sub domain.Submission
	err := r.db.GetContext(ctx, &sub,
		`SELECT `+submissionSelectList+` FROM submissions WHERE entry_id = $1 AND is_active`, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no active submission is a valid state
	}
	if err != nil {
		return nil, fmt.Errorf("get active submission: %w", err)
	}
	return &sub, nil
}

// SetForceRun flags an entry to be refreshed on the next scheduler pass.
func (r *EntryRepository) SetForceRun(ctx context.Context, entryID string) error {
	err := execExpectOneRow(ctx, r.db,
		`UPDATE entries SET force_run = TRUE, updated_at = NOW() WHERE id = $1`, entryID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("set force run: %w", err)
	}
	return err
}

// ClearForceRun drops a pending force-run without touching the refresh lease.
func (r *EntryRepository) ClearForceRun(ctx context.Context, entryID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET force_run = FALSE, updated_at = NOW() WHERE id = $1 AND force_run`, entryID)
	if err != nil {
		return fmt.Errorf("clear force run: %w", err)
	}
	return nil
}

// ClaimRefresh takes the refresh lease on an entry. The claim only succeeds
// while the entry still has the last run and force-run flag the caller saw,
// so a pass working from an older listing cannot refresh the entry again.
// It returns false when another run holds a lease younger than lease or the
// entry has moved on.
func (r *EntryRepository) ClaimRefresh(ctx context.Context, observed *domain.Entry, lease time.Duration) (bool, error) {
	err := execExpectOneRow(ctx, r.db, `
		UPDATE entries
		SET refresh_started_at = NOW()
		WHERE id = $1
		  AND (refresh_started_at IS NULL
		       OR refresh_started_at < NOW() - make_interval(secs => $2))
		  AND last_run_at IS NOT DISTINCT FROM $3
		  AND force_run = $4`,
		observed.ID, lease.Seconds(), observed.LastRunAt, observed.ForceRun)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim refresh: %w", err)
	}
	return true, nil
}

// FinishRefresh releases the refresh lease and clears force_run. last_run_at
// is only advanced when ranAt is non-nil.
func (r *EntryRepository) FinishRefresh(ctx context.Context, entryID string, ranAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE entries
		SET refresh_started_at = NULL,
		    force_run = FALSE,
		    last_run_at = COALESCE($2, last_run_at),
		    updated_at = NOW()
		WHERE id = $1`, entryID, ranAt)
	if err != nil {
		return fmt.Errorf("finish refresh: %w", err)
	}
	return nil
}

// WithEntry runs fn in a transaction holding the entry's row lock.
func (r *EntryRepository) WithEntry(ctx context.Context, entryID string, fn func(tx lifecycle.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entry transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var entry domain.Entry
	err = tx.GetContext(ctx, &entry, `SELECT `+entrySelectList+` FROM entries WHERE id = $1 FOR UPDATE`, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock entry: %w", err)
	}
	if err = loadEntryDetails(ctx, tx, &entry); err != nil {
		return err
	}

	if err = fn(&entryTx{tx: tx, entry: &entry}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit entry transaction: %w", err)
	}
	return nil
}
