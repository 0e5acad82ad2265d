package queue_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/backend"
	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// memJobs mimics the claim and lease rules of the publish_jobs table.
type memJobs struct {
	mu     sync.Mutex
	now    func() time.Time
	jobs   []*domain.Job
	renews int
}

func newMemJobs(now func() time.Time) *memJobs {
	return &memJobs{now: now}
}

func (m *memJobs) Insert(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs = append(m.jobs, &cp)
	return nil
}

func (m *memJobs) fresh(j *domain.Job, lease time.Duration) bool {
	return j.Status == domain.JobStatusOnPublishing && !j.StartedAt.Before(m.now().Add(-lease))
}

func (m *memJobs) ClaimNext(_ context.Context, lease time.Duration) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		claimable := j.Status == domain.JobStatusReady ||
			(j.Status == domain.JobStatusOnPublishing && j.StartedAt.Before(m.now().Add(-lease)))
		if !claimable {
			continue
		}
		blocked := slices.ContainsFunc(m.jobs, func(o *domain.Job) bool {
			return o.ID != j.ID && o.EntryID == j.EntryID && m.fresh(o, lease)
		})
		if blocked {
			continue
		}
		now := m.now()
		j.Status = domain.JobStatusOnPublishing
		j.StartedAt = &now
		j.CompletedAt = nil
		cp := *j
		return &cp, nil
	}
	return nil, database.ErrNoJobAvailable
}

func (m *memJobs) find(id string) *domain.Job {
	for _, j := range m.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (m *memJobs) owned(job *domain.Job) *domain.Job {
	j := m.find(job.ID)
	if j == nil || j.Status != domain.JobStatusOnPublishing || !j.StartedAt.Equal(*job.StartedAt) {
		return nil
	}
	return j
}

func (m *memJobs) Renew(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.owned(job)
	if j == nil {
		return database.ErrLeaseLost
	}
	m.renews++
	now := m.now()
	j.StartedAt = &now
	j.Log = job.Log
	job.StartedAt = &now
	return nil
}

func (m *memJobs) Complete(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.owned(job)
	if j == nil {
		return database.ErrLeaseLost
	}
	j.Status = job.Status
	j.Success = job.Success
	j.Log = job.Log
	j.CompletedAt = job.CompletedAt
	return nil
}

func (m *memJobs) HasActiveJob(_ context.Context, entryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.jobs, func(j *domain.Job) bool {
		return j.EntryID == entryID && !j.Status.IsTerminal()
	}), nil
}

func (m *memJobs) get(id string) domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.find(id)
}

type memChannels map[string][]domain.PublishChannel

func (m memChannels) HasEnabled(ctx context.Context, entryID string) (bool, error) {
	chs, _ := m.ListEnabled(ctx, entryID)
	return len(chs) > 0, nil
}

func (m memChannels) ListEnabled(_ context.Context, entryID string) ([]domain.PublishChannel, error) {
	var out []domain.PublishChannel
	for _, ch := range m[entryID] {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out, nil
}

type memEntries struct {
	entries map[string]*domain.Entry
	active  map[string]*domain.Submission
}

func (m *memEntries) GetByID(_ context.Context, id string) (*domain.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *memEntries) ActiveSubmission(_ context.Context, entryID string) (*domain.Submission, error) {
	return m.active[entryID], nil
}

// scriptedDispatcher fails the channels named in failures and records every call.
type scriptedDispatcher struct {
	mu       sync.Mutex
	failures map[string]error
	calls    []backend.Request
	// during runs inside Publish, before the result is returned.
	during func(req backend.Request)
}

func (d *scriptedDispatcher) Publish(_ context.Context, req backend.Request) error {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	during := d.during
	d.mu.Unlock()
	if during != nil {
		during(req)
	}
	return d.failures[req.Channel.ID]
}
