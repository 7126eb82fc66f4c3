package quorum

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. Handlers translate these to HTTP
// statuses with errors.Is.
var (
	// ErrNotFound means the request or policy does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the voter is not permitted to decide (self-vote).
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyVoted means a vote from this voter already exists.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrNotPending means the request reached a terminal state before the vote.
	ErrNotPending = errors.New("request is not pending")

	// ErrExpired means the deadline passed; the attempt triggers the
	// Pending -> Expired transition instead of admitting the vote.
	ErrExpired = errors.New("request has expired")

	// ErrInvalidPolicy means M > N or M < 1 on policy create/update/resolution.
	ErrInvalidPolicy = errors.New("invalid quorum policy")

	// ErrInvalidVote means the decision is not approve/reject.
	ErrInvalidVote = errors.New("vote must be 'approve' or 'reject'")
)

// statusError carries the terminal status a conflicting vote ran into.
type statusError struct {
	status ApprovalStatus
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request is already %s", e.status)
}

func (e *statusError) Is(target error) bool {
	return target == ErrNotPending
}

// NotPendingError builds a Conflict error reporting the current terminal status.
func NotPendingError(status ApprovalStatus) error {
	return &statusError{status: status}
}
