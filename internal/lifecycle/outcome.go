package lifecycle

import "github.com/jonesrussell/north-cloud/curator/internal/domain"

// Reason explains a negative or notable outcome.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidState       Reason = "invalid_state"
	ReasonNoActiveSubmission Reason = "no_active_submission"
	ReasonHashMismatch       Reason = "hash_mismatch"
	ReasonEntryDeclined      Reason = "entry_declined"
	ReasonNotAuthorized      Reason = "not_authorized"
	ReasonAlreadyActive      Reason = "already_active"
)

// Outcome is the result of a lifecycle operation. Business refusals are
// outcomes, not errors; errors are reserved for store failures.
type Outcome struct {
	OK     bool               `json:"ok"`
	Reason Reason             `json:"reason,omitempty"`
	Status domain.EntryStatus `json:"status"`
}

func refused(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

func succeeded() Outcome {
	return Outcome{OK: true}
}
