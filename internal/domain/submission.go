package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the review state of one submitted version.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusAccepted  SubmissionStatus = "accepted"
	SubmissionStatusDeclined  SubmissionStatus = "declined"
)

// Submission is one version of an entry's content.
type Submission struct {
	ID              string           `db:"id"               json:"id"`
	EntryID         string           `db:"entry_id"         json:"entry_id"`
	ContentLocation string           `db:"content_location" json:"content_location"`
	AttributeHash   string           `db:"attribute_hash"   json:"attribute_hash"`
	Extent          *Extent          `db:"extent"           json:"extent,omitempty"`
	IsActive        bool             `db:"is_active"        json:"is_active"`
	Status          SubmissionStatus `db:"status"           json:"status"`
	CreatedAt       time.Time        `db:"created_at"       json:"created_at"`
	SubmittedAt     time.Time        `db:"submitted_at"     json:"submitted_at"`
}

// NewSubmission creates an inactive submission awaiting activation.
func NewSubmission(entryID, contentLocation, attributeHash string) (*Submission, error) {
	if entryID == "" {
		return nil, fmt.Errorf("%w: entry_id is required", ErrValidation)
	}
	if attributeHash == "" {
		return nil, fmt.Errorf("%w: attribute_hash is required", ErrValidation)
	}

	now := time.Now().UTC()
	return &Submission{
		ID:              uuid.NewString(),
		EntryID:         entryID,
		ContentLocation: contentLocation,
		AttributeHash:   attributeHash,
		Status:          SubmissionStatusSubmitted,
		CreatedAt:       now,
		SubmittedAt:     now,
	}, nil
}

// Content is the stored data a new submission points at.
type Content struct {
	Location string
	Extent   *Extent
	// CreatedAt is when the data was produced. Zero means the submission time.
	CreatedAt time.Time
}

// Extent is the bounding box of a submission's features in lon/lat order.
type Extent struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Value stores the extent as a JSON document.
func (e Extent) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads an extent stored by Value.
func (e *Extent) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("scan extent: unsupported type %T", src)
	}
}
