package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/curator/internal/backend"
	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

const (
	defaultBatchSize      = 20
	defaultLeaseWindow    = time.Minute
	defaultBackendTimeout = 30 * time.Second

	logStartPublishing = "Start publishing.."
)

// ExecutorConfig holds executor options.
type ExecutorConfig struct {
	BatchSize      int
	LeaseWindow    time.Duration
	BackendTimeout time.Duration
}

// Executor claims publish jobs and fans each one out to the entry's enabled channels.
type Executor struct {
	jobs       JobStore
	channels   ChannelStore
	entries    EntryStore
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        logger.Logger
	tracer     trace.Tracer
	now        func() time.Time

	batchSize      int
	leaseWindow    time.Duration
	backendTimeout time.Duration
}

// NewExecutor creates an executor.
func NewExecutor(
	jobs JobStore,
	channels ChannelStore,
	entries EntryStore,
	dispatcher Dispatcher,
	cfg ExecutorConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *Executor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.LeaseWindow <= 0 {
		cfg.LeaseWindow = defaultLeaseWindow
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = defaultBackendTimeout
	}

	return &Executor{
		jobs:           jobs,
		channels:       channels,
		entries:        entries,
		dispatcher:     dispatcher,
		metrics:        m,
		log:            log,
		tracer:         otel.Tracer("publish-executor"),
		now:            func() time.Time { return time.Now().UTC() },
		batchSize:      cfg.BatchSize,
		leaseWindow:    cfg.LeaseWindow,
		backendTimeout: cfg.BackendTimeout,
	}
}

// RunOnce processes up to the batch size of claimable jobs and returns how
// many it completed. Backend failures are recorded on the job; store
// failures stop the batch and are returned.
func (e *Executor) RunOnce(ctx context.Context) (int, error) {
	done := 0
	for range e.batchSize {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		job, err := e.jobs.ClaimNext(ctx, e.leaseWindow)
		if errors.Is(err, database.ErrNoJobAvailable) {
			break
		}
		if err != nil {
			return done, err
		}

		err = e.process(ctx, job)
		if errors.Is(err, database.ErrLeaseLost) {
			e.log.Warn("Publish job lease lost, leaving it to the new owner", logger.JobID(job.ID))
			continue
		}
		if err != nil {
			return done, err
		}
		done++
	}

	if done > 0 {
		e.log.Info("Publish batch finished", logger.Int("jobs", done))
	}
	return done, nil
}

func (e *Executor) process(ctx context.Context, job *domain.Job) error {
	ctx, span := e.tracer.Start(ctx, "publish.job",
		trace.WithAttributes(
			attribute.String("job_id", job.ID),
			attribute.String("entry_id", job.EntryID),
			attribute.Bool("symbology_only", job.SymbologyOnly),
		))
	defer span.End()

	job.AppendLog(logStartPublishing)

	if err := e.publish(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	job.Finish(e.now())
	if err := e.jobs.Complete(ctx, job); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("status", string(job.Status)))
	e.metrics.JobProcessed(string(job.Status))
	e.log.Info("Publish job completed",
		logger.JobID(job.ID),
		logger.EntryID(job.EntryID),
		logger.String("status", string(job.Status)),
	)
	return nil
}

// publish calls every enabled channel in turn. Backend failures mark the job
// failed; only store errors are returned.
func (e *Executor) publish(ctx context.Context, job *domain.Job) error {
	entry, err := e.entries.GetByID(ctx, job.EntryID)
	if errors.Is(err, domain.ErrNotFound) {
		job.AppendLog("Entry no longer exists")
		job.Fail()
		return nil
	}
	if err != nil {
		return err
	}

	var (
		contentLocation string
		extent          *domain.Extent
	)
	sub, err := e.entries.ActiveSubmission(ctx, entry.ID)
	if err != nil {
		return err
	}
	if sub != nil {
		contentLocation, extent = sub.ContentLocation, sub.Extent
	}

	channels, err := e.channels.ListEnabled(ctx, entry.ID)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		job.AppendLog("No enabled publish channel")
		job.Fail()
		return nil
	}

	for i, ch := range channels {
		if i > 0 {
			if err = e.jobs.Renew(ctx, job); err != nil {
				return err
			}
		}

		req := backend.Request{
			Entry:           entry,
			Channel:         ch,
			ContentLocation: contentLocation,
			Extent:          extent,
			SymbologyOnly:   job.SymbologyOnly,
		}
		if callErr := e.call(ctx, req); callErr != nil {
			job.AppendLog(fmt.Sprintf("Failed to publish to %s (channel %s): %v", ch.Backend, ch.ID, callErr))
			job.Fail()
			e.log.Warn("Backend publish failed",
				logger.JobID(job.ID),
				logger.ChannelID(ch.ID),
				logger.Backend(string(ch.Backend)),
				logger.Error(callErr),
			)
			continue
		}
		job.AppendLog(fmt.Sprintf("Published to %s (channel %s)", ch.Backend, ch.ID))
	}
	return nil
}

func (e *Executor) call(ctx context.Context, req backend.Request) error {
	ctx, span := e.tracer.Start(ctx, "publish.backend",
		trace.WithAttributes(
			attribute.String("backend", string(req.Channel.Backend)),
			attribute.String("channel_id", req.Channel.ID),
		))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.backendTimeout)
	defer cancel()

	start := time.Now()
	err := e.dispatcher.Publish(callCtx, req)
	e.metrics.BackendCall(string(req.Channel.Backend), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
