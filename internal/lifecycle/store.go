package lifecycle

import (
	"context"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// Store opens a unit of work over one entry and its submissions.
// fn runs while the entry is locked against concurrent lifecycle operations;
// its writes commit together when it returns nil and roll back otherwise.
type Store interface {
	WithEntry(ctx context.Context, entryID string, fn func(tx Tx) error) error
}

// Tx is the view of one entry's aggregate inside a Store unit of work.
type Tx interface {
	// Entry returns the locked entry. Mutations are persisted by UpdateEntry.
	Entry() *domain.Entry
	// Attributes returns the live attribute list ordered by position.
	Attributes(ctx context.Context) ([]domain.Attribute, error)
	// ActiveSubmission returns the active submission, or nil if there is none.
	ActiveSubmission(ctx context.Context) (*domain.Submission, error)
	// Submission returns one of the entry's submissions or domain.ErrNotFound.
	Submission(ctx context.Context, id string) (*domain.Submission, error)
	InsertSubmission(ctx context.Context, sub *domain.Submission) error
	UpdateSubmission(ctx context.Context, sub *domain.Submission) error
	UpdateEntry(ctx context.Context, entry *domain.Entry) error
}

// Pusher enqueues publish jobs.
type Pusher interface {
	Push(ctx context.Context, entry *domain.Entry, symbologyOnly bool, submitterID *string) (bool, error)
}

// Notifier receives fire-and-forget lifecycle events.
type Notifier interface {
	EntryLocked(ctx context.Context, entry *domain.Entry)
	SubmissionActivated(ctx context.Context, entry *domain.Entry, sub *domain.Submission)
	SubmissionDeclined(ctx context.Context, entry *domain.Entry, sub *domain.Submission)
}
