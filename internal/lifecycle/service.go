// Package lifecycle implements the entry state machine and the submission
// activation protocol. Every operation runs inside one Store unit of work;
// publishing and notifications happen only after that unit commits.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fingerprint"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// Service runs lifecycle operations against a Store.
type Service struct {
	store    Store
	queue    Pusher
	notifier Notifier
	log      logger.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a lifecycle service. queue and notifier may be nil.
func NewService(store Store, queue Pusher, notifier Notifier, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		queue:    queue,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// effects collects what must happen once the unit of work has committed.
type effects struct {
	lockAttempted bool
	activated     *domain.Submission
	declined      []*domain.Submission
}

// run executes op inside a unit of work and applies its effects after commit.
func (s *Service) run(ctx context.Context, entryID string, op func(tx Tx, eff *effects) (Outcome, error)) (Outcome, error) {
	var (
		out      Outcome
		eff      effects
		snapshot domain.Entry
	)
	err := s.store.WithEntry(ctx, entryID, func(tx Tx) error {
		var opErr error
		out, opErr = op(tx, &eff)
		if opErr != nil {
			return opErr
		}
		snapshot = *tx.Entry()
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	out.Status = snapshot.Status
	s.apply(ctx, &snapshot, &eff)
	return out, nil
}

// apply runs post-commit side effects. Their failures are logged only.
func (s *Service) apply(ctx context.Context, entry *domain.Entry, eff *effects) {
	if s.notifier != nil {
		for _, sub := range eff.declined {
			s.notifier.SubmissionDeclined(ctx, entry, sub)
		}
		if eff.activated != nil {
			s.notifier.SubmissionActivated(ctx, entry, eff.activated)
		}
		if eff.lockAttempted {
			s.notifier.EntryLocked(ctx, entry)
		}
	}
	if eff.lockAttempted {
		s.pushSymbology(ctx, entry)
	}
}

func (s *Service) pushSymbology(ctx context.Context, entry *domain.Entry) {
	if s.queue == nil {
		return
	}
	pushed, err := s.queue.Push(ctx, entry, true, nil)
	switch {
	case err != nil:
		s.log.Warn("Symbology publish enqueue failed", logger.EntryID(entry.ID), logger.Error(err))
	case !pushed:
		s.log.Debug("Entry has no publish configuration, skipping symbology publish", logger.EntryID(entry.ID))
	}
}

// Lock moves an unlocked entry to locked when the active submission still
// matches the live attributes, and to pending when it does not.
func (s *Service) Lock(ctx context.Context, entryID string) (Outcome, error) {
	return s.run(ctx, entryID, func(tx Tx, eff *effects) (Outcome, error) {
		return s.lock(ctx, tx, eff)
	})
}

func (s *Service) lock(ctx context.Context, tx Tx, eff *effects) (Outcome, error) {
	entry := tx.Entry()
	if !entry.Status.IsUnlocked() {
		return refused(ReasonInvalidState), nil
	}

	active, err := tx.ActiveSubmission(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load active submission: %w", err)
	}
	if active == nil {
		s.log.Info("Lock refused, entry has no active submission", logger.EntryID(entry.ID))
		return refused(ReasonNoActiveSubmission), nil
	}

	if entry.Status == domain.EntryStatusNewDraft && active.Status != domain.SubmissionStatusAccepted {
		active.Status = domain.SubmissionStatusAccepted
		if err = tx.UpdateSubmission(ctx, active); err != nil {
			return Outcome{}, fmt.Errorf("accept submission: %w", err)
		}
	}

	attrs, err := tx.Attributes(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load attributes: %w", err)
	}

	out := succeeded()
	entry.Status = domain.EntryStatusLocked
	if !fingerprint.Equal(attrs, active.AttributeHash) {
		out = refused(ReasonHashMismatch)
		entry.Status = domain.EntryStatusPending
		s.log.Info("Lock refused, attributes drifted since submission",
			logger.EntryID(entry.ID),
			logger.SubmissionID(active.ID),
		)
	}

	entry.UpdatedAt = s.now()
	if err = tx.UpdateEntry(ctx, entry); err != nil {
		return Outcome{}, fmt.Errorf("update entry: %w", err)
	}
	eff.lockAttempted = true
	return out, nil
}

// Unlock returns a locked or pending entry to draft.
func (s *Service) Unlock(ctx context.Context, entryID string) (Outcome, error) {
	return s.run(ctx, entryID, func(tx Tx, _ *effects) (Outcome, error) {
		status := tx.Entry().Status
		if status != domain.EntryStatusLocked && status != domain.EntryStatusPending {
			return refused(ReasonInvalidState), nil
		}
		return s.setStatus(ctx, tx, domain.EntryStatusDraft)
	})
}

// Decline declines an unlocked entry. A new draft also declines its active submission.
func (s *Service) Decline(ctx context.Context, entryID string) (Outcome, error) {
	return s.run(ctx, entryID, func(tx Tx, eff *effects) (Outcome, error) {
		entry := tx.Entry()
		if !entry.Status.IsUnlocked() {
			return refused(ReasonInvalidState), nil
		}
		if entry.Status == domain.EntryStatusNewDraft {
			active, err := tx.ActiveSubmission(ctx)
			if err != nil {
				return Outcome{}, fmt.Errorf("load active submission: %w", err)
			}
			if active != nil {
				active.Status = domain.SubmissionStatusDeclined
				if err = tx.UpdateSubmission(ctx, active); err != nil {
					return Outcome{}, fmt.Errorf("decline submission: %w", err)
				}
				eff.declined = append(eff.declined, active)
			}
		}
		return s.setStatus(ctx, tx, domain.EntryStatusDeclined)
	})
}

func (s *Service) setStatus(ctx context.Context, tx Tx, to domain.EntryStatus) (Outcome, error) {
	entry := tx.Entry()
	if !domain.CanTransition(entry.Status, to) {
		return refused(ReasonInvalidState), nil
	}
	entry.Status = to
	entry.UpdatedAt = s.now()
	if err := tx.UpdateEntry(ctx, entry); err != nil {
		return Outcome{}, fmt.Errorf("update entry: %w", err)
	}
	return succeeded(), nil
}

// Assign makes user responsible for the entry. The user must be one of the
// entry's editors or an administrator; otherwise nothing changes.
func (s *Service) Assign(ctx context.Context, entryID string, user domain.User) (Outcome, error) {
	return s.run(ctx, entryID, func(tx Tx, _ *effects) (Outcome, error) {
		entry := tx.Entry()
		if user.ID == "" || (!user.IsAdmin && !entry.IsEditor(user.ID)) {
			return refused(ReasonNotAuthorized), nil
		}
		assignee := user.ID
		entry.AssigneeID = &assignee
		return s.saveEntry(ctx, tx)
	})
}

// Unassign clears the responsible user.
func (s *Service) Unassign(ctx context.Context, entryID string) (Outcome, error) {
	return s.run(ctx, entryID, func(tx Tx, _ *effects) (Outcome, error) {
		tx.Entry().AssigneeID = nil
		return s.saveEntry(ctx, tx)
	})
}

func (s *Service) saveEntry(ctx context.Context, tx Tx) (Outcome, error) {
	entry := tx.Entry()
	entry.UpdatedAt = s.now()
	if err := tx.UpdateEntry(ctx, entry); err != nil {
		return Outcome{}, fmt.Errorf("update entry: %w", err)
	}
	return succeeded(), nil
}
