package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EntryStatus is the lifecycle state of an entry.
type EntryStatus string

const (
	EntryStatusNewDraft EntryStatus = "new_draft"
	EntryStatusDraft    EntryStatus = "draft"
	EntryStatusPending  EntryStatus = "pending"
	EntryStatusLocked   EntryStatus = "locked"
	EntryStatusDeclined EntryStatus = "declined"
)

// IsUnlocked reports whether the status is one of new_draft, draft or pending.
func (s EntryStatus) IsUnlocked() bool {
	return s == EntryStatusNewDraft || s == EntryStatusDraft || s == EntryStatusPending
}

// entryTransitions lists the statuses reachable from each status.
var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryStatusNewDraft: {EntryStatusLocked, EntryStatusPending, EntryStatusDeclined},
	EntryStatusDraft:    {EntryStatusLocked, EntryStatusPending, EntryStatusDeclined},
	EntryStatusPending:  {EntryStatusLocked, EntryStatusPending, EntryStatusDraft, EntryStatusDeclined},
	EntryStatusLocked:   {EntryStatusDraft},
	EntryStatusDeclined: {},
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to EntryStatus) bool {
	return slices.Contains(entryTransitions[from], to)
}

// EntryKind describes where an entry's content comes from.
type EntryKind string

const (
	EntryKindFile    EntryKind = "file"
	EntryKindWFS     EntryKind = "wfs"
	EntryKindWMS     EntryKind = "wms"
	EntryKindPostGIS EntryKind = "postgis"
	EntryKindQuery   EntryKind = "query"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindFile, EntryKindWFS, EntryKindWMS, EntryKindPostGIS, EntryKindQuery:
		return true
	default:
		return false
	}
}

// Entry is a curated dataset record.
type Entry struct {
	ID          string      `db:"id"          json:"id"`
	Name        string      `db:"name"        json:"name"`
	Description string      `db:"description" json:"description"`
	Status      EntryStatus `db:"status"      json:"status"`
	Kind        EntryKind   `db:"kind"        json:"kind"`

	// QueryURL is the source queried by refreshes of query entries.
	QueryURL *string `db:"query_url" json:"query_url,omitempty"`
	// Symbology is the style document pushed by symbology-only publishes.
	Symbology *string `db:"symbology" json:"symbology,omitempty"`

	AssigneeID *string  `db:"assignee_id" json:"assignee_id,omitempty"`
	EditorIDs  []string `db:"-"           json:"editor_ids"`

	Recurrence       *RecurrenceSpec `db:"-"                  json:"recurrence,omitempty"`
	LastRunAt        *time.Time      `db:"last_run_at"        json:"last_run_at,omitempty"`
	ForceRun         bool            `db:"force_run"          json:"force_run"`
	RefreshStartedAt *time.Time      `db:"refresh_started_at" json:"-"`

	// DataCreatedAt mirrors the creation time of the active submission.
	DataCreatedAt *time.Time `db:"data_created_at" json:"data_created_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewEntry creates an entry in the new_draft state.
func NewEntry(name string, kind EntryKind) (*Entry, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entry kind %q", ErrValidation, kind)
	}

	now := time.Now().UTC()
	return &Entry{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    EntryStatusNewDraft,
		Kind:      kind,
		EditorIDs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetRecurrence attaches a validated recurrence rule. Only query entries can recur.
func (e *Entry) SetRecurrence(spec *RecurrenceSpec) error {
	if spec == nil {
		e.Recurrence = nil
		return nil
	}
	if err := e.CheckRefreshable(); err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	e.Recurrence = spec
	return nil
}

// CheckRefreshable fails unless the entry's content can be re-fetched, which
// only query entries support. Recurrence rules and force-runs require it.
func (e *Entry) CheckRefreshable() error {
	if e.Kind != EntryKindQuery {
		return fmt.Errorf("%w: only %s entries can be refreshed, got %s", ErrValidation, EntryKindQuery, e.Kind)
	}
	return nil
}

// IsEditor reports whether userID is one of the entry's editors.
func (e *Entry) IsEditor(userID string) bool {
	return slices.Contains(e.EditorIDs, userID)
}

// User is the subset of an account the lifecycle needs to decide assignments.
type User struct {
	ID      string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}
