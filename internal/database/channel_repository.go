package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const channelSelectList = `id, entry_id, backend, enabled, settings, created_at`

// ChannelRepository stores the publish channels attached to entries.
type ChannelRepository struct {
	db *sqlx.DB
}

// NewChannelRepository creates a new repository.
func NewChannelRepository(db *sqlx.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts a channel.
func (r *ChannelRepository) Create(ctx context.Context, ch *domain.PublishChannel) error {
	settings := ch.Settings
	if len(settings) == 0 {
		settings = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO publish_channels (id, entry_id, backend, enabled, settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.EntryID, ch.Backend, ch.Enabled, []byte(settings), ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert publish channel: %w", err)
	}
	return nil
}

// ListByEntry returns all channels of an entry, enabled or not.
func (r *ChannelRepository) ListByEntry(ctx context.Context, entryID string) ([]domain.PublishChannel, error) {
	return r.list(ctx, `SELECT `+channelSelectList+` FROM publish_channels
		WHERE entry_id = $1 ORDER BY created_at`, entryID)
}

// ListEnabled returns the channels a publish job fans out to, in creation order.
func (r *ChannelRepository) ListEnabled(ctx context.Context, entryID string) ([]domain.PublishChannel, error) {
	return r.list(ctx, `SELECT `+channelSelectList+` FROM publish_channels
		WHERE entry_id = $1 AND enabled ORDER BY created_at`, entryID)
}

func (r *ChannelRepository) list(ctx context.Context, query, entryID string) ([]domain.PublishChannel, error) {
	channels := []domain.PublishChannel{}
	if err := r.db.SelectContext(ctx, &channels, query, entryID); err != nil {
		return nil, fmt.Errorf("list publish channels: %w", err)
	}
	return channels, nil
}

// HasEnabled reports whether the entry has a publish configuration.
func (r *ChannelRepository) HasEnabled(ctx context.Context, entryID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM publish_channels WHERE entry_id = $1 AND enabled)`, entryID)
	if err != nil {
		return false, fmt.Errorf("check publish channels: %w", err)
	}
	return exists, nil
}
