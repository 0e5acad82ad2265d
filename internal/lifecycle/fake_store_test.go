package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
)

var errSecondActive = errors.New("second active submission for entry")

// fakeStore keeps aggregates in memory and commits a unit of work only when
// the callback succeeds.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]domain.Entry
	attrs   map[string][]domain.Attribute
	subs    map[string]domain.Submission
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: map[string]domain.Entry{},
		attrs:   map[string][]domain.Attribute{},
		subs:    map[string]domain.Submission{},
	}
}

func (f *fakeStore) addEntry(e *domain.Entry, attrs []domain.Attribute) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = *e
	f.attrs[e.ID] = slices.Clone(attrs)
}

func (f *fakeStore) addSubmission(s *domain.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[s.ID] = *s
}

func (f *fakeStore) setAttributes(entryID string, attrs []domain.Attribute) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[entryID] = slices.Clone(attrs)
}

func (f *fakeStore) entry(id string) domain.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[id]
}

func (f *fakeStore) submission(id string) domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id]
}

func (f *fakeStore) activeCount(entryID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.EntryID == entryID && s.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeStore) WithEntry(_ context.Context, entryID string, fn func(tx lifecycle.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[entryID]
	if !ok {
		return domain.ErrNotFound
	}
	tx := &fakeTx{entry: &e, attrs: f.attrs[entryID], subs: map[string]domain.Submission{}}
	for id, s := range f.subs {
		if s.EntryID == entryID {
			tx.subs[id] = s
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if tx.dirty {
		f.entries[entryID] = tx.saved
	}
	maps.Copy(f.subs, tx.subs)
	return nil
}

type fakeTx struct {
	entry *domain.Entry
	saved domain.Entry
	dirty bool
	attrs []domain.Attribute
	subs  map[string]domain.Submission
}

func (t *fakeTx) Entry() *domain.Entry { return t.entry }

func (t *fakeTx) Attributes(context.Context) ([]domain.Attribute, error) {
	return slices.Clone(t.attrs), nil
}

func (t *fakeTx) ActiveSubmission(context.Context) (*domain.Submission, error) {
	for _, s := range t.subs {
		if s.IsActive {
			return &s, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) Submission(_ context.Context, id string) (*domain.Submission, error) {
	s, ok := t.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (t *fakeTx) InsertSubmission(_ context.Context, sub *domain.Submission) error {
	if _, exists := t.subs[sub.ID]; exists {
		return fmt.Errorf("duplicate submission %s", sub.ID)
	}
	return t.UpdateSubmission(context.Background(), sub)
}

func (t *fakeTx) UpdateSubmission(_ context.Context, sub *domain.Submission) error {
	if sub.IsActive {
		for id, other := range t.subs {
			if id != sub.ID && other.IsActive {
				return errSecondActive
			}
		}
	}
	t.subs[sub.ID] = *sub
	return nil
}

func (t *fakeTx) UpdateEntry(_ context.Context, entry *domain.Entry) error {
	t.saved = *entry
	t.dirty = true
	return nil
}

type pushCall struct {
	entryID       string
	symbologyOnly bool
}

type fakePusher struct {
	mu     sync.Mutex
	calls  []pushCall
	result bool
	err    error
}

func (p *fakePusher) Push(_ context.Context, entry *domain.Entry, symbologyOnly bool, _ *string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{entryID: entry.ID, symbologyOnly: symbologyOnly})
	return p.result, p.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	locked    []domain.EntryStatus
	activated []string
	declined  []string
}

func (n *fakeNotifier) EntryLocked(_ context.Context, entry *domain.Entry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locked = append(n.locked, entry.Status)
}

func (n *fakeNotifier) SubmissionActivated(_ context.Context, _ *domain.Entry, sub *domain.Submission) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activated = append(n.activated, sub.ID)
}

func (n *fakeNotifier) SubmissionDeclined(_ context.Context, _ *domain.Entry, sub *domain.Submission) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.declined = append(n.declined, sub.ID)
}
