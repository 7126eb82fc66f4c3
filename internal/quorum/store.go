package quorum

import (
	"context"
	"time"
)

// Store is the persistence contract for requests, votes and policies.
//
// The engine serializes the read-validate-increment-evaluate sequence per
// request id, so Store implementations only need per-call atomicity:
// AddVote must persist the vote row and the updated request as one unit
// (a transaction in the Postgres store), and must reject a duplicate
// (request, user) pair with ErrAlreadyVoted.
type Store interface {
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error)

	// UpdateRequest persists counter/status/completion changes. It must not
	// overwrite a request that already reached a terminal state (terminal
	// states are monotonic); implementations return ErrNotPending instead.
	UpdateRequest(ctx context.Context, r *Request) error

	// AddVote atomically appends the vote and persists the updated request.
	AddVote(ctx context.Context, v *Vote, r *Request) error
	HasVote(ctx context.Context, requestID, userID string) (bool, error)
	ListVotes(ctx context.Context, requestID string) ([]Vote, error)

	CreatePolicy(ctx context.Context, p *Policy) error
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	UpdatePolicy(ctx context.Context, p *Policy) error
	DeletePolicy(ctx context.Context, id string) error
	ListPolicies(ctx context.Context, organizationID *string) ([]*Policy, error)

	// FindEnabledPolicy returns the enabled policy for (approvalType, scope),
	// where a nil organizationID selects the global default scope, or
	// ErrNotFound when no such policy exists.
	FindEnabledPolicy(ctx context.Context, approvalType ApprovalType, organizationID *string) (*Policy, error)

	// ListExpiredPending returns pending requests whose deadline passed at
	// now, for the background sweep. The engine supplies its own clock so
	// sweep behavior stays consistent with lazy expiry on vote admission.
	ListExpiredPending(ctx context.Context, now time.Time) ([]*Request, error)
}
