package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a publish job.
type JobStatus string

const (
	JobStatusReady        JobStatus = "ready"
	JobStatusOnPublishing JobStatus = "on_publishing"
	JobStatusPublished    JobStatus = "published"
	JobStatusFailed       JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusPublished || s == JobStatusFailed
}

// Job is one request to publish an entry to every enabled channel.
type Job struct {
	ID            string     `db:"id"             json:"id"`
	EntryID       string     `db:"entry_id"       json:"entry_id"`
	SymbologyOnly bool       `db:"symbology_only" json:"symbology_only"`
	Status        JobStatus  `db:"status"         json:"status"`
	Success       bool       `db:"success"        json:"success"`
	Log           string     `db:"log"            json:"log"`
	SubmitterID   *string    `db:"submitter_id"   json:"submitter_id,omitempty"`
	StartedAt     *time.Time `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"   json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
}

// NewJob creates a ready job. A nil submitter marks a system-triggered publish.
func NewJob(entryID string, symbologyOnly bool, submitterID *string) (*Job, error) {
	if entryID == "" {
		return nil, fmt.Errorf("%w: entry_id is required", ErrValidation)
	}
	return &Job{
		ID:            uuid.NewString(),
		EntryID:       entryID,
		SymbologyOnly: symbologyOnly,
		Status:        JobStatusReady,
		SubmitterID:   submitterID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// AppendLog adds one line to the cumulative job log.
func (j *Job) AppendLog(line string) {
	line = strings.TrimRight(line, "\n")
	if j.Log == "" {
		j.Log = line
		return
	}
	j.Log += "\n" + line
}

// Fail marks the job failed. Failure is sticky for the rest of the run.
func (j *Job) Fail() {
	j.Success = false
	j.Status = JobStatusFailed
}

// Finish sets the terminal status. A job that did not fail is published.
func (j *Job) Finish(at time.Time) {
	if j.Status != JobStatusFailed {
		j.Status = JobStatusPublished
		j.Success = true
	}
	j.CompletedAt = &at
}

// JobStats holds job counts by status.
type JobStats struct {
	Ready        int64 `db:"ready"         json:"ready"`
	OnPublishing int64 `db:"on_publishing" json:"on_publishing"`
	Published    int64 `db:"published"     json:"published"`
	Failed       int64 `db:"failed"        json:"failed"`
}
