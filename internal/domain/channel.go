package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BackendKind selects the publish backend a channel targets.
type BackendKind string

const (
	BackendGeoServer BackendKind = "geoserver"
	BackendCatalogue BackendKind = "catalogue"
	BackendArchive   BackendKind = "archive"
)

// Valid reports whether k is a known backend.
func (k BackendKind) Valid() bool {
	return k == BackendGeoServer || k == BackendCatalogue || k == BackendArchive
}

// PublishChannel attaches one downstream backend to an entry.
// Settings is backend-specific JSON decoded by the backend itself.
type PublishChannel struct {
	ID        string          `db:"id"         json:"id"`
	EntryID   string          `db:"entry_id"   json:"entry_id"`
	Backend   BackendKind     `db:"backend"    json:"backend"`
	Enabled   bool            `db:"enabled"    json:"enabled"`
	Settings  json.RawMessage `db:"settings"   json:"settings"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NewPublishChannel creates a channel. Empty settings are stored as {}.
func NewPublishChannel(entryID string, backend BackendKind, enabled bool, settings json.RawMessage) (*PublishChannel, error) {
	if entryID == "" {
		return nil, fmt.Errorf("%w: entry_id is required", ErrValidation)
	}
	if !backend.Valid() {
		return nil, fmt.Errorf("%w: unknown backend %q", ErrValidation, backend)
	}
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}
	if !json.Valid(settings) {
		return nil, fmt.Errorf("%w: settings must be a JSON document", ErrValidation)
	}
	return &PublishChannel{
		ID:        uuid.NewString(),
		EntryID:   entryID,
		Backend:   backend,
		Enabled:   enabled,
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}, nil
}
