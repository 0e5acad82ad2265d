// Package queue persists publish intents as jobs and executes them against
// the configured publish channels.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/backend"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

// JobStore persists publish jobs.
type JobStore interface {
	Insert(ctx context.Context, job *domain.Job) error
	ClaimNext(ctx context.Context, lease time.Duration) (*domain.Job, error)
	Renew(ctx context.Context, job *domain.Job) error
	Complete(ctx context.Context, job *domain.Job) error
	HasActiveJob(ctx context.Context, entryID string) (bool, error)
}

// ChannelStore lists the publish channels of an entry.
type ChannelStore interface {
	HasEnabled(ctx context.Context, entryID string) (bool, error)
	ListEnabled(ctx context.Context, entryID string) ([]domain.PublishChannel, error)
}

// EntryStore loads the entry a job publishes.
type EntryStore interface {
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	ActiveSubmission(ctx context.Context, entryID string) (*domain.Submission, error)
}

// Dispatcher sends one publish request to its channel's backend.
type Dispatcher interface {
	Publish(ctx context.Context, req backend.Request) error
}

var _ Dispatcher = (*backend.Registry)(nil)

// Queue records publish intents.
type Queue struct {
	jobs     JobStore
	channels ChannelStore
	metrics  *metrics.Metrics
	log      logger.Logger
}

// New creates a queue.
func New(jobs JobStore, channels ChannelStore, m *metrics.Metrics, log logger.Logger) *Queue {
	return &Queue{jobs: jobs, channels: channels, metrics: m, log: log}
}

// Push inserts a ready job for entry. It returns false without inserting when
// the entry has no enabled publish channel. Push does not deduplicate.
func (q *Queue) Push(ctx context.Context, entry *domain.Entry, symbologyOnly bool, submitterID *string) (bool, error) {
	ok, err := q.channels.HasEnabled(ctx, entry.ID)
	if err != nil {
		return false, fmt.Errorf("check publish configuration: %w", err)
	}
	if !ok {
		return false, nil
	}

	job, err := domain.NewJob(entry.ID, symbologyOnly, submitterID)
	if err != nil {
		return false, err
	}
	if err = q.jobs.Insert(ctx, job); err != nil {
		return false, err
	}

	q.metrics.JobEnqueued(symbologyOnly)
	q.log.Info("Publish job queued",
		logger.JobID(job.ID),
		logger.EntryID(entry.ID),
		logger.Bool("symbology_only", symbologyOnly),
	)
	return true, nil
}

// HasActiveJob reports whether the entry has a ready or running job.
func (q *Queue) HasActiveJob(ctx context.Context, entryID string) (bool, error) {
	return q.jobs.HasActiveJob(ctx, entryID)
}
