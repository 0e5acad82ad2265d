package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fingerprint"
	"github.com/jonesrussell/north-cloud/curator/internal/lifecycle"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

var (
	schemaA = []domain.Attribute{
		{Name: "id", Type: "integer", Position: 1},
		{Name: "name", Type: "string", Position: 2},
	}
	schemaB = []domain.Attribute{
		{Name: "id", Type: "integer", Position: 1},
		{Name: "label", Type: "string", Position: 2},
	}
)

type fixture struct {
	store    *fakeStore
	pusher   *fakePusher
	notifier *fakeNotifier
	svc      *lifecycle.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newFakeStore(),
		pusher:   &fakePusher{result: true},
		notifier: &fakeNotifier{},
	}
	clock := func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	f.svc = lifecycle.NewService(f.store, f.pusher, f.notifier, logger.NewNop(), lifecycle.WithClock(clock))
	return f
}

// seed creates an entry with live attributes and, when subHash is non-empty,
// one active submission carrying that hash.
func (f *fixture) seed(t *testing.T, status domain.EntryStatus, live []domain.Attribute, subHash string) (string, string) {
	t.Helper()

	entry, err := domain.NewEntry("parcels", domain.EntryKindFile)
	require.NoError(t, err)
	entry.Status = status
	entry.EditorIDs = []string{"editor-1"}
	f.store.addEntry(entry, live)

	if subHash == "" {
		return entry.ID, ""
	}
	sub, err := domain.NewSubmission(entry.ID, "s3://content/parcels.geojson", subHash)
	require.NoError(t, err)
	sub.IsActive = true
	f.store.addSubmission(sub)
	return entry.ID, sub.ID
}

func TestLock_MatchingHashLocks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, subID := f.seed(t, domain.EntryStatusNewDraft, schemaA, fingerprint.Compute(schemaA))

	out, err := f.svc.Lock(context.Background(), entryID)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, domain.EntryStatusLocked, out.Status)
	assert.Equal(t, domain.EntryStatusLocked, f.store.entry(entryID).Status)
	assert.Equal(t, domain.SubmissionStatusAccepted, f.store.submission(subID).Status)
	assert.Equal(t, []pushCall{{entryID: entryID, symbologyOnly: true}}, f.pusher.calls)
	assert.Equal(t, []domain.EntryStatus{domain.EntryStatusLocked}, f.notifier.locked)
}

func TestLock_DriftedHashMovesToPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, _ := f.seed(t, domain.EntryStatusNewDraft, schemaB, fingerprint.Compute(schemaA))

	out, err := f.svc.Lock(context.Background(), entryID)
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.Equal(t, lifecycle.ReasonHashMismatch, out.Reason)
	assert.Equal(t, domain.EntryStatusPending, f.store.entry(entryID).Status)
	// The symbology publish fires whatever the outcome.
	assert.Len(t, f.pusher.calls, 1)
}

func TestLock_NoActiveSubmission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, _ := f.seed(t, domain.EntryStatusNewDraft, schemaA, "")

	out, err := f.svc.Lock(context.Background(), entryID)
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.Equal(t, lifecycle.ReasonNoActiveSubmission, out.Reason)
	assert.Equal(t, domain.EntryStatusNewDraft, f.store.entry(entryID).Status)
	assert.Empty(t, f.pusher.calls)
	assert.Empty(t, f.notifier.locked)
}

func TestLock_RefusedWhenNotUnlocked(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.EntryStatus{domain.EntryStatusLocked, domain.EntryStatusDeclined} {
		f := newFixture(t)
		entryID, _ := f.seed(t, status, schemaA, fingerprint.Compute(schemaA))

		out, err := f.svc.Lock(context.Background(), entryID)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.ReasonInvalidState, out.Reason, status)
		assert.Equal(t, status, f.store.entry(entryID).Status)
	}
}

func TestLock_PushFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.pusher.err = errors.New("queue down")
	entryID, _ := f.seed(t, domain.EntryStatusDraft, schemaA, fingerprint.Compute(schemaA))

	out, err := f.svc.Lock(context.Background(), entryID)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestLock_UnknownEntry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Lock(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from   domain.EntryStatus
		wantOK bool
		want   domain.EntryStatus
	}{
		{domain.EntryStatusLocked, true, domain.EntryStatusDraft},
		{domain.EntryStatusPending, true, domain.EntryStatusDraft},
		{domain.EntryStatusDraft, false, domain.EntryStatusDraft},
		{domain.EntryStatusNewDraft, false, domain.EntryStatusNewDraft},
		{domain.EntryStatusDeclined, false, domain.EntryStatusDeclined},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			entryID, _ := f.seed(t, tt.from, schemaA, "")

			out, err := f.svc.Unlock(context.Background(), entryID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, out.OK)
			assert.Equal(t, tt.want, f.store.entry(entryID).Status)
		})
	}
}

func TestDecline_NewDraftDeclinesActiveSubmission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, subID := f.seed(t, domain.EntryStatusNewDraft, schemaA, fingerprint.Compute(schemaA))

	out, err := f.svc.Decline(context.Background(), entryID)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, domain.EntryStatusDeclined, f.store.entry(entryID).Status)
	assert.Equal(t, domain.SubmissionStatusDeclined, f.store.submission(subID).Status)
	assert.Equal(t, []string{subID}, f.notifier.declined)
}

func TestDecline_DraftKeepsSubmission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, subID := f.seed(t, domain.EntryStatusDraft, schemaA, fingerprint.Compute(schemaA))

	out, err := f.svc.Decline(context.Background(), entryID)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, domain.SubmissionStatusSubmitted, f.store.submission(subID).Status)
}

func TestDecline_RefusedWhenLocked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, _ := f.seed(t, domain.EntryStatusLocked, schemaA, "")

	out, err := f.svc.Decline(context.Background(), entryID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ReasonInvalidState, out.Reason)
	assert.Equal(t, domain.EntryStatusLocked, f.store.entry(entryID).Status)
}

func TestAssign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		user   domain.User
		wantOK bool
	}{
		{"editor", domain.User{ID: "editor-1"}, true},
		{"admin", domain.User{ID: "admin-1", IsAdmin: true}, true},
		{"stranger", domain.User{ID: "someone"}, false},
		{"anonymous", domain.User{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			entryID, _ := f.seed(t, domain.EntryStatusDraft, schemaA, "")

			out, err := f.svc.Assign(context.Background(), entryID, tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, out.OK)

			assignee := f.store.entry(entryID).AssigneeID
			if tt.wantOK {
				require.NotNil(t, assignee)
				assert.Equal(t, tt.user.ID, *assignee)
				return
			}
			assert.Equal(t, lifecycle.ReasonNotAuthorized, out.Reason)
			assert.Nil(t, assignee)
		})
	}
}

func TestUnassign(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, _ := f.seed(t, domain.EntryStatusDraft, schemaA, "")

	_, err := f.svc.Assign(context.Background(), entryID, domain.User{ID: "editor-1"})
	require.NoError(t, err)

	out, err := f.svc.Unassign(context.Background(), entryID)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Nil(t, f.store.entry(entryID).AssigneeID)
}
