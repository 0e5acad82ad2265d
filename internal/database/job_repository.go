package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// jobSelectList is the column list for SELECT/RETURNING on publish_jobs.
const jobSelectList = `id, entry_id, symbology_only, status, success, log, submitter_id,
	started_at, completed_at, created_at`

// JobRepository stores publish jobs and hands them out under a lease.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Insert stores a new job.
func (r *JobRepository) Insert(ctx context.Context, job *domain.Job) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO publish_jobs (id, entry_id, symbology_only, status, success, log,
			submitter_id, created_at)
		VALUES (:id, :entry_id, :symbology_only, :status, :success, :log,
			:submitter_id, :created_at)`, job)
	if err != nil {
		return fmt.Errorf("insert publish job: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest job that is ready, or whose claim
// is older than lease. Entries that already have a fresh claim are skipped.
// Returns ErrNoJobAvailable when nothing is claimable.
func (r *JobRepository) ClaimNext(ctx context.Context, lease time.Duration) (*domain.Job, error) {
	query := `
		UPDATE publish_jobs
		SET status = 'on_publishing', started_at = NOW(), completed_at = NULL
		WHERE id = (
			SELECT j.id FROM publish_jobs j
			WHERE (j.status = 'ready'
			       OR (j.status = 'on_publishing'
			           AND j.started_at < NOW() - make_interval(secs => $1)))
			  AND NOT EXISTS (
			      SELECT 1 FROM publish_jobs o
			      WHERE o.entry_id = j.entry_id
			        AND o.id <> j.id
			        AND o.status = 'on_publishing'
			        AND o.started_at >= NOW() - make_interval(secs => $1))
			ORDER BY j.created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectList

	var job domain.Job
	if err := r.db.GetContext(ctx, &job, query, lease.Seconds()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}
		return nil, fmt.Errorf("claim publish job: %w", err)
	}
	return &job, nil
}

// Renew extends the lease of a claimed job and saves its log so far.
// Returns ErrLeaseLost when another worker has reclaimed the job.
func (r *JobRepository) Renew(ctx context.Context, job *domain.Job) error {
	var startedAt time.Time
	err := r.db.GetContext(ctx, &startedAt, `
		UPDATE publish_jobs
		SET started_at = NOW(), log = $3
		WHERE id = $1 AND status = 'on_publishing' AND started_at = $2
		RETURNING started_at`, job.ID, job.StartedAt, job.Log)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("renew publish job: %w", err)
	}
	job.StartedAt = &startedAt
	return nil
}

// Complete persists the terminal status, success flag, log and completion time
// in one update. Returns ErrLeaseLost when the claim is no longer ours.
func (r *JobRepository) Complete(ctx context.Context, job *domain.Job) error {
	err := execExpectOneRow(ctx, r.db, `
		UPDATE publish_jobs
		SET status = $3, success = $4, log = $5, completed_at = $6
		WHERE id = $1 AND status = 'on_publishing' AND started_at = $2`,
		job.ID, job.StartedAt, job.Status, job.Success, job.Log, job.CompletedAt)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("complete publish job: %w", err)
	}
	return nil
}

// GetByID retrieves a single job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job, `SELECT `+jobSelectList+` FROM publish_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get publish job: %w", err)
	}
	return &job, nil
}

// HasActiveJob reports whether the entry has a ready or on_publishing job.
func (r *JobRepository) HasActiveJob(ctx context.Context, entryID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM publish_jobs
			WHERE entry_id = $1 AND status IN ('ready', 'on_publishing'))`, entryID)
	if err != nil {
		return false, fmt.Errorf("check active publish job: %w", err)
	}
	return exists, nil
}

// Stats returns job counts by status.
func (r *JobRepository) Stats(ctx context.Context) (*domain.JobStats, error) {
	var stats domain.JobStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'ready') AS ready,
			COUNT(*) FILTER (WHERE status = 'on_publishing') AS on_publishing,
			COUNT(*) FILTER (WHERE status = 'published') AS published,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM publish_jobs`)
	if err != nil {
		return nil, fmt.Errorf("get publish job stats: %w", err)
	}
	return &stats, nil
}
