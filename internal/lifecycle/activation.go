package lifecycle

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fingerprint"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// Activate decides whether a stored submission replaces the entry's active one.
// Submissions whose hash no longer matches the live attributes, or that
// arrive for a declined entry, are declined. A pending entry is re-locked
// when the new submission matches.
func (s *Service) Activate(ctx context.Context, entryID, submissionID string) (Outcome, error) {
	return s.run(ctx, entryID, func(tx Tx, eff *effects) (Outcome, error) {
		sub, err := tx.Submission(ctx, submissionID)
		if err != nil {
			return Outcome{}, fmt.Errorf("load submission %s: %w", submissionID, err)
		}
		return s.activate(ctx, tx, sub, eff)
	})
}

// Submit stores new content for an entry and activates it in the same unit of work.
// The submission hash is computed from attrs, the schema of the submitted content.
// The submission's creation time is the content's CreatedAt when set.
func (s *Service) Submit(
	ctx context.Context,
	entryID string,
	content domain.Content,
	attrs []domain.Attribute,
) (*domain.Submission, Outcome, error) {
	var stored *domain.Submission
	out, err := s.run(ctx, entryID, func(tx Tx, eff *effects) (Outcome, error) {
		sub, err := domain.NewSubmission(entryID, content.Location, fingerprint.Compute(attrs))
		if err != nil {
			return Outcome{}, err
		}
		sub.Extent = content.Extent
		now := s.now()
		sub.CreatedAt, sub.SubmittedAt = now, now
		if !content.CreatedAt.IsZero() {
			sub.CreatedAt = content.CreatedAt.UTC()
		}
		if err = tx.InsertSubmission(ctx, sub); err != nil {
			return Outcome{}, fmt.Errorf("insert submission: %w", err)
		}
		stored = sub
		return s.activate(ctx, tx, sub, eff)
	})
	if err != nil {
		return nil, Outcome{}, err
	}
	return stored, out, nil
}

func (s *Service) activate(ctx context.Context, tx Tx, sub *domain.Submission, eff *effects) (Outcome, error) {
	entry := tx.Entry()
	if sub.IsActive {
		return Outcome{OK: true, Reason: ReasonAlreadyActive}, nil
	}

	attrs, err := tx.Attributes(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load attributes: %w", err)
	}

	var reason Reason
	switch {
	case entry.Status == domain.EntryStatusDeclined:
		reason = ReasonEntryDeclined
	case !fingerprint.Equal(attrs, sub.AttributeHash):
		reason = ReasonHashMismatch
	}
	if reason != ReasonNone {
		sub.Status = domain.SubmissionStatusDeclined
		if err = tx.UpdateSubmission(ctx, sub); err != nil {
			return Outcome{}, fmt.Errorf("decline submission: %w", err)
		}
		eff.declined = append(eff.declined, sub)
		s.log.Info("Submission declined",
			logger.EntryID(entry.ID),
			logger.SubmissionID(sub.ID),
			logger.String("reason", string(reason)),
		)
		return refused(reason), nil
	}

	prev, err := tx.ActiveSubmission(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load active submission: %w", err)
	}

	if entry.Status == domain.EntryStatusNewDraft {
		sub.Status = domain.SubmissionStatusSubmitted
		if prev != nil {
			prev.Status = domain.SubmissionStatusDeclined
			eff.declined = append(eff.declined, prev)
		}
	} else {
		sub.Status = domain.SubmissionStatusAccepted
	}

	// The previous submission is deactivated first so at most one is ever active.
	if prev != nil {
		prev.IsActive = false
		if err = tx.UpdateSubmission(ctx, prev); err != nil {
			return Outcome{}, fmt.Errorf("deactivate submission %s: %w", prev.ID, err)
		}
	}
	sub.IsActive = true
	if err = tx.UpdateSubmission(ctx, sub); err != nil {
		return Outcome{}, fmt.Errorf("activate submission: %w", err)
	}
	eff.activated = sub

	createdAt := sub.CreatedAt
	entry.DataCreatedAt = &createdAt

	if entry.Status == domain.EntryStatusPending {
		s.log.Info("Re-locking pending entry after matching submission",
			logger.EntryID(entry.ID),
			logger.SubmissionID(sub.ID),
		)
		return s.lock(ctx, tx, eff)
	}

	entry.UpdatedAt = s.now()
	if err = tx.UpdateEntry(ctx, entry); err != nil {
		return Outcome{}, fmt.Errorf("update entry: %w", err)
	}
	return succeeded(), nil
}
