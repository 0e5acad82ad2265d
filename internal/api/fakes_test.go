package api_test

import (
	"context"
	"errors"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
)

var errDatabase = errors.New("database is down")

type fakeLifecycle struct {
	outcome   lifecycle.Outcome
	err       error
	calls     []string
	assigned  domain.User
	submitted []domain.Attribute
	content   domain.Content
}

func (f *fakeLifecycle) record(op string) (lifecycle.Outcome, error) {
	f.calls = append(f.calls, op)
	return f.outcome, f.err
}

func (f *fakeLifecycle) Lock(context.Context, string) (lifecycle.Outcome, error) {
	return f.record("lock")
}

func (f *fakeLifecycle) Unlock(context.Context, string) (lifecycle.Outcome, error) {
	return f.record("unlock")
}

func (f *fakeLifecycle) Decline(context.Context, string) (lifecycle.Outcome, error) {
	return f.record("decline")
}

func (f *fakeLifecycle) Assign(_ context.Context, _ string, user domain.User) (lifecycle.Outcome, error) {
	f.assigned = user
	return f.record("assign")
}

func (f *fakeLifecycle) Unassign(context.Context, string) (lifecycle.Outcome, error) {
	return f.record("unassign")
}

func (f *fakeLifecycle) Activate(context.Context, string, string) (lifecycle.Outcome, error) {
	return f.record("activate")
}

func (f *fakeLifecycle) Submit(_ context.Context, entryID string, content domain.Content, attrs []domain.Attribute) (*domain.Submission, lifecycle.Outcome, error) {
	f.submitted = attrs
	f.content = content
	out, err := f.record("submit")
	if err != nil {
		return nil, out, err
	}
	return &domain.Submission{ID: "sub-1", EntryID: entryID, ContentLocation: content.Location, Extent: content.Extent}, out, nil
}

type fakeEntries struct {
	entries    map[string]*domain.Entry
	attributes map[string][]domain.Attribute
	forced     []string
	created    []*domain.Entry
}

func newFakeEntries(entries ...*domain.Entry) *fakeEntries {
	f := &fakeEntries{entries: map[string]*domain.Entry{}, attributes: map[string][]domain.Attribute{}}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return f
}

func (f *fakeEntries) Create(_ context.Context, e *domain.Entry) error {
	f.created = append(f.created, e)
	f.entries[e.ID] = e
	return nil
}

func (f *fakeEntries) GetByID(_ context.Context, id string) (*domain.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeEntries) SetRecurrence(_ context.Context, id string, spec *domain.RecurrenceSpec) error {
	f.entries[id].Recurrence = spec
	return nil
}

func (f *fakeEntries) ReplaceAttributes(_ context.Context, id string, attrs []domain.Attribute) error {
	f.attributes[id] = attrs
	return nil
}

func (f *fakeEntries) SetForceRun(_ context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return domain.ErrNotFound
	}
	f.forced = append(f.forced, id)
	return nil
}

type fakeChannels struct {
	channels []domain.PublishChannel
}

func (f *fakeChannels) Create(_ context.Context, ch *domain.PublishChannel) error {
	f.channels = append(f.channels, *ch)
	return nil
}

func (f *fakeChannels) ListByEntry(_ context.Context, entryID string) ([]domain.PublishChannel, error) {
	out := []domain.PublishChannel{}
	for _, ch := range f.channels {
		if ch.EntryID == entryID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type fakeJobs struct {
	jobs  map[string]*domain.Job
	stats domain.JobStats
	err   error
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) Stats(context.Context) (*domain.JobStats, error) {
	return &f.stats, f.err
}

type pushCall struct {
	entryID       string
	symbologyOnly bool
	submitterID   *string
}

type fakePublisher struct {
	active   bool
	accepted bool
	pushes   []pushCall
}

func (f *fakePublisher) Push(_ context.Context, e *domain.Entry, symbologyOnly bool, submitterID *string) (bool, error) {
	if !f.accepted {
		return false, nil
	}
	f.pushes = append(f.pushes, pushCall{entryID: e.ID, symbologyOnly: symbologyOnly, submitterID: submitterID})
	return true, nil
}

func (f *fakePublisher) HasActiveJob(context.Context, string) (bool, error) {
	return f.active, nil
}
