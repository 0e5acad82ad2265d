// Package refresh drives the periodic refresh of recurring query entries.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fetch"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
	"github.com/jonesrussell/north-cloud/curator/internal/recurrence"
)

const defaultLease = 10 * time.Minute

// Refresh results, as counted by metrics.
const (
	ResultSubmitted   = "submitted"
	ResultRefused     = "refused"
	ResultFetchFailed = "fetch_failed"
	ResultBusy        = "busy"
)

// EntryStore is the entry persistence the scheduler needs.
type EntryStore interface {
	ListRecurring(ctx context.Context) ([]domain.Entry, error)
	ClaimRefresh(ctx context.Context, observed *domain.Entry, lease time.Duration) (bool, error)
	FinishRefresh(ctx context.Context, entryID string, ranAt *time.Time) error
	ClearForceRun(ctx context.Context, entryID string) error
}

// Fetcher retrieves fresh content for an entry.
type Fetcher interface {
	Fetch(ctx context.Context, entry *domain.Entry) (*fetch.Result, error)
}

// Submitter turns fetched content into a submission and activates it.
type Submitter interface {
	Submit(ctx context.Context, entryID string, content domain.Content, attrs []domain.Attribute) (*domain.Submission, lifecycle.Outcome, error)
}

var _ Submitter = (*lifecycle.Service)(nil)

// Summary counts what one pass did.
type Summary struct {
	Checked   int
	Due       int
	Submitted int
	Refused   int
	Failed    int
	Busy      int
}

// Scheduler refreshes query entries whose rule is due or whose force-run flag is set.
type Scheduler struct {
	entries   EntryStore
	fetcher   Fetcher
	submitter Submitter
	evaluator *recurrence.Evaluator
	lease     time.Duration
	metrics   *metrics.Metrics
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLease sets how long a refresh claim blocks other runs.
func WithLease(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lease = d
		}
	}
}

// WithMetrics records refresh results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a scheduler.
func NewScheduler(
	entries EntryStore,
	fetcher Fetcher,
	submitter Submitter,
	evaluator *recurrence.Evaluator,
	log logger.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		entries:   entries,
		fetcher:   fetcher,
		submitter: submitter,
		evaluator: evaluator,
		lease:     defaultLease,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce walks every listed query entry once, sequentially. A failed fetch is
// logged and leaves the entry's last run untouched; store errors end the pass.
// Declined entries are never refreshed and lose any pending force-run.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary

	entries, err := s.entries.ListRecurring(ctx)
	if err != nil {
		return sum, err
	}

	for i := range entries {
		if err = ctx.Err(); err != nil {
			return sum, err
		}
		entry := &entries[i]
		sum.Checked++

		if entry.Status == domain.EntryStatusDeclined {
			if entry.ForceRun {
				if err = s.entries.ClearForceRun(ctx, entry.ID); err != nil {
					return sum, err
				}
			}
			continue
		}
		now := s.now()
		if !entry.ForceRun && !s.evaluator.IsDue(entry.Recurrence, entry.LastRunAt, now) {
			continue
		}
		sum.Due++

		result, runErr := s.refresh(ctx, entry, now)
		if runErr != nil {
			return sum, runErr
		}
		s.metrics.RefreshRun(result)

		switch result {
		case ResultSubmitted:
			sum.Submitted++
		case ResultRefused:
			sum.Refused++
		case ResultFetchFailed:
			sum.Failed++
		case ResultBusy:
			sum.Busy++
		}
	}

	if sum.Due > 0 {
		s.log.Info("Refresh pass finished",
			logger.Int("checked", sum.Checked),
			logger.Int("submitted", sum.Submitted),
			logger.Int("refused", sum.Refused),
			logger.Int("failed", sum.Failed),
			logger.Int("busy", sum.Busy),
		)
	}
	return sum, nil
}

// refresh runs one entry under its refresh lease. The lease and the
// force-run flag are released whatever the outcome.
func (s *Scheduler) refresh(ctx context.Context, entry *domain.Entry, now time.Time) (string, error) {
	claimed, err := s.entries.ClaimRefresh(ctx, entry, s.lease)
	if err != nil {
		return "", err
	}
	if !claimed {
		s.log.Debug("Entry refresh running or already done elsewhere", logger.EntryID(entry.ID))
		return ResultBusy, nil
	}

	result, ranAt, err := s.fetchAndSubmit(ctx, entry, now)
	if finishErr := s.entries.FinishRefresh(ctx, entry.ID, ranAt); finishErr != nil {
		if err == nil {
			err = finishErr
		}
		s.log.Error("Failed to release refresh lease", logger.EntryID(entry.ID), logger.Error(finishErr))
	}
	return result, err
}

func (s *Scheduler) fetchAndSubmit(ctx context.Context, entry *domain.Entry, now time.Time) (string, *time.Time, error) {
	res, err := s.fetcher.Fetch(ctx, entry)
	if err != nil {
		s.log.Warn("Entry refresh fetch failed",
			logger.EntryID(entry.ID),
			logger.Bool("forced", entry.ForceRun),
			logger.Error(err),
		)
		return ResultFetchFailed, nil, nil
	}

	sub, out, err := s.submitter.Submit(ctx, entry.ID, res.Content(), res.Attributes)
	if err != nil {
		return "", nil, fmt.Errorf("submit refreshed content for entry %s: %w", entry.ID, err)
	}

	ranAt := now.UTC()
	if !out.OK {
		s.log.Info("Refreshed content refused",
			logger.EntryID(entry.ID),
			logger.SubmissionID(sub.ID),
			logger.String("reason", string(out.Reason)),
		)
		return ResultRefused, &ranAt, nil
	}

	s.log.Info("Entry refreshed",
		logger.EntryID(entry.ID),
		logger.SubmissionID(sub.ID),
		logger.Int("features", res.FeatureCount),
		logger.String("status", string(out.Status)),
	)
	return ResultSubmitted, &ranAt, nil
}
