package spin

import "errors"

// Precondition and authorization failures surfaced to the initiating
// actor. These are user-facing and never retried by the coordinator;
// retry policy, if any, belongs to the UI.
var (
	// ErrUnauthorized is returned when the caller lacks the session's
	// admin key.
	ErrUnauthorized = errors.New("caller is not privileged for this session")

	// ErrAlreadySpinning is returned when an active spin record exists.
	// First writer wins; concurrent initiators receive this error.
	ErrAlreadySpinning = errors.New("a spin is already active for this session")

	// ErrEmptyRoster is returned when the session has no participants.
	ErrEmptyRoster = errors.New("roster is empty")

	// ErrCooldownActive is returned when the minimum inter-spin
	// interval has not elapsed since the previous spin's publish time.
	ErrCooldownActive = errors.New("spin cooldown has not elapsed")

	// ErrStaleConfirmation is returned when the confirmed spin ID does
	// not match the currently active record.
	ErrStaleConfirmation = errors.New("spin id does not match the active record")

	// ErrHistoryWriteFailed wraps failures appending the history entry.
	// The record stays active so the confirmation can be retried.
	ErrHistoryWriteFailed = errors.New("failed to write history entry")

	// ErrRosterRemovalFailed wraps failures removing the winner from
	// the roster. The record stays active so the confirmation can be
	// retried.
	ErrRosterRemovalFailed = errors.New("failed to remove winner from roster")

	// ErrNoSpinRecord is returned by repositories when a session has
	// never published a spin.
	ErrNoSpinRecord = errors.New("no spin record for session")
)
