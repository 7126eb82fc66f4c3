package quorum

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/metrics"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
)

// NameResolver resolves user ids to display names for responses. Lookups are
// best-effort; a failed lookup leaves the name empty.
type NameResolver interface {
	UserName(ctx context.Context, userID string) (string, error)
}

// CompletionHandler is invoked once per request when it reaches a terminal
// status, after the transition has been persisted. The engine never performs
// the gated operation itself; handlers apply the outcome to the entity the
// request references (e.g. flipping a key's status).
type CompletionHandler func(ctx context.Context, req *Request)

// Engine is the request lifecycle controller. It owns creation, vote
// admission, quorum evaluation and expiry, serializing the
// read-validate-increment-evaluate sequence per request id.
type Engine struct {
	store      Store
	defaults   PolicyDefaults
	notifier   notify.Sink
	audit      audit.Sink
	names      NameResolver
	completion CompletionHandler
	logger     *logging.Logger
	now        func() time.Time
	locks      *requestLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier routes workflow events to a notification sink.
func WithNotifier(s notify.Sink) Option {
	return func(e *Engine) { e.notifier = s }
}

// WithAuditSink routes structured audit entries to a sink.
func WithAuditSink(s audit.Sink) Option {
	return func(e *Engine) { e.audit = s }
}

// WithNameResolver enables creator/voter display names in responses.
func WithNameResolver(n NameResolver) Option {
	return func(e *Engine) { e.names = n }
}

// WithCompletionHandler registers a hook invoked after a request reaches a
// terminal status.
func WithCompletionHandler(h CompletionHandler) Option {
	return func(e *Engine) { e.completion = h }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDefaults overrides the built-in fallback quorum configuration.
func WithDefaults(d PolicyDefaults) Option {
	return func(e *Engine) { e.defaults = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a lifecycle controller over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		defaults: PolicyDefaults{RequiredApprovals: 2, TotalApprovers: 3, ExpiryHours: 72},
		notifier: notify.NopSink{},
		audit:    audit.NopSink{},
		now:      time.Now,
		locks:    newRequestLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRequestInput carries the caller-visible creation parameters.
type CreateRequestInput struct {
	ApprovalType ApprovalType
	Title        string
	Description  string
	EntityType   string
	EntityID     string
	EntityData   string // JSON snapshot of the governed entity

	// Requested quorum parameters; used only when no enabled policy matches.
	// Zero values fall back to the engine defaults.
	RequiredApprovals int
	TotalApprovers    int

	OrganizationID *string
	CreatedByID    string
}

// CreateRequest resolves the effective policy and persists a new request in
// the Pending state with counters at zero.
func (e *Engine) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if !in.ApprovalType.Valid() {
		return nil, fmt.Errorf("invalid approval type %q", in.ApprovalType)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if in.EntityType == "" || in.EntityID == "" {
		return nil, fmt.Errorf("entity type and entity id are required")
	}
	if in.CreatedByID == "" {
		return nil, fmt.Errorf("created_by id is required")
	}

	defaults := e.defaults
	if in.RequiredApprovals > 0 {
		defaults.RequiredApprovals = in.RequiredApprovals
	}
	if in.TotalApprovers > 0 {
		defaults.TotalApprovers = in.TotalApprovers
	}

	eff, err := ResolvePolicy(ctx, e.store, in.ApprovalType, in.OrganizationID, defaults)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	req := &Request{
		ID:                uuid.New().String(),
		ApprovalType:      in.ApprovalType,
		Title:             in.Title,
		Description:       in.Description,
		EntityType:        in.EntityType,
		EntityID:          in.EntityID,
		EntityData:        in.EntityData,
		RequiredApprovals: eff.RequiredApprovals,
		TotalApprovers:    eff.TotalApprovers,
		Status:            StatusPending,
		OrganizationID:    in.OrganizationID,
		CreatedByID:       in.CreatedByID,
		CreatedAt:         now,
		Votes:             []Vote{},
	}
	if eff.ExpiryHours > 0 {
		expires := now.Add(time.Duration(eff.ExpiryHours) * time.Hour)
		req.ExpiresAt = &expires
	}

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	metrics.RecordApprovalRequest(string(req.ApprovalType))

	e.audit.Record(ctx, audit.Entry{
		ActorID:    in.CreatedByID,
		Action:     "approval_request_create",
		EntityType: "approval_request",
		EntityID:   &req.ID,
		Changes: map[string]interface{}{
			"approval_type":      string(req.ApprovalType),
			"title":              req.Title,
			"required_approvals": req.RequiredApprovals,
			"total_approvers":    req.TotalApprovers,
		},
	})
	e.publish(req, notify.NewEvent(
		notify.EventApprovalRequested,
		"Approval Requested",
		fmt.Sprintf("%s requires %d of %d approvals", req.Title, req.RequiredApprovals, req.TotalApprovers),
		"approval_request", req.ID,
		map[string]interface{}{"approval_type": string(req.ApprovalType)},
	))

	e.resolveNames(ctx, req)
	return req, nil
}

// Vote admits a single vote on a pending request. The whole
// read-validate-increment-evaluate sequence runs under the request's lock,
// and the vote row plus updated counters are persisted as one atomic unit.
func (e *Engine) Vote(ctx context.Context, requestID, voterID string, decision VoteDecision, comment string) (*Request, error) {
	if !decision.Valid() {
		return nil, ErrInvalidVote
	}
	if voterID == "" {
		return nil, fmt.Errorf("%w: voter id is required", ErrForbidden)
	}

	entry := e.locks.lock(requestID)
	defer e.locks.unlock(requestID, entry)

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	voted, err := e.store.HasVote(ctx, requestID, voterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, ErrAlreadyVoted
	}

	if voterID == req.CreatedByID {
		return nil, fmt.Errorf("%w: creator cannot vote on their own request", ErrForbidden)
	}

	if req.Status != StatusPending {
		return nil, NotPendingError(req.Status)
	}

	now := e.now().UTC()
	if req.Expired(now) {
		if err := e.expireLocked(ctx, req, now); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	vote := &Vote{
		ID:        uuid.New().String(),
		RequestID: requestID,
		UserID:    voterID,
		Decision:  decision,
		Comment:   comment,
		CreatedAt: now,
	}
	if decision == VoteApprove {
		req.CurrentApprovals++
	} else {
		req.CurrentRejections++
	}

	next := Evaluate(req.RequiredApprovals, req.TotalApprovers, req.CurrentApprovals, req.CurrentRejections)
	if next.Terminal() {
		req.Status = next
		completed := now
		req.CompletedAt = &completed
	}

	if err := e.store.AddVote(ctx, vote, req); err != nil {
		return nil, err
	}
	metrics.RecordVote(string(decision))

	e.audit.Record(ctx, audit.Entry{
		ActorID:    voterID,
		Action:     "approval_vote",
		EntityType: "approval_request",
		EntityID:   &req.ID,
		Changes: map[string]interface{}{
			"vote":               string(decision),
			"current_approvals":  req.CurrentApprovals,
			"current_rejections": req.CurrentRejections,
			"status":             string(req.Status),
		},
	})
	e.publish(req, notify.NewEvent(
		notify.EventApprovalVoteAdded,
		"Vote Recorded",
		fmt.Sprintf("%s: %d of %d approvals", req.Title, req.CurrentApprovals, req.RequiredApprovals),
		"approval_request", req.ID,
		map[string]interface{}{
			"vote":               string(decision),
			"current_approvals":  req.CurrentApprovals,
			"current_rejections": req.CurrentRejections,
			"required_approvals": req.RequiredApprovals,
			"total_approvers":    req.TotalApprovers,
		},
	))

	if req.Status.Terminal() {
		metrics.RecordDecision(string(req.Status))
		data := map[string]interface{}{"status": string(req.Status)}
		if req.Status == StatusRejected {
			// Distinguish the early-rejection cause for observability.
			data["reason"] = "quorum unreachable"
		}
		e.publish(req, notify.NewEvent(
			notify.EventApprovalCompleted,
			"Approval Completed",
			fmt.Sprintf("%s is %s", req.Title, req.Status),
			"approval_request", req.ID,
			data,
		))
		if e.logger != nil {
			e.logger.Info("Approval request completed", map[string]interface{}{
				"request_id": req.ID,
				"status":     string(req.Status),
			})
		}
		if e.completion != nil {
			e.completion(ctx, req)
		}
	}

	e.attachVotes(ctx, req)
	e.resolveNames(ctx, req)
	return req, nil
}

// GetRequest returns a request with its votes.
func (e *Engine) GetRequest(ctx context.Context, id string) (*Request, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	e.attachVotes(ctx, req)
	e.resolveNames(ctx, req)
	return req, nil
}

// ListRequests returns requests matching the filter, each with its votes.
func (e *Engine) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	reqs, err := e.store.ListRequests(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		e.attachVotes(ctx, req)
		e.resolveNames(ctx, req)
	}
	return reqs, nil
}

// ExpireOverdue transitions pending requests whose deadline passed to
// Expired. It is best-effort: vote admission performs the same check lazily,
// so correctness does not depend on the sweep.
func (e *Engine) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := e.store.ListExpiredPending(ctx, e.now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, stale := range overdue {
		entry := e.locks.lock(stale.ID)

		req, err := e.store.GetRequest(ctx, stale.ID)
		if err == nil && req.Status == StatusPending && req.Expired(e.now().UTC()) {
			if err := e.expireLocked(ctx, req, e.now().UTC()); err == nil {
				expired++
			} else if e.logger != nil {
				e.logger.Error("Failed to expire request", err, map[string]interface{}{
					"request_id": req.ID,
				})
			}
		}

		e.locks.unlock(stale.ID, entry)
	}
	return expired, nil
}

// expireLocked performs the Pending -> Expired transition. Caller holds the
// request lock.
func (e *Engine) expireLocked(ctx context.Context, req *Request, now time.Time) error {
	req.Status = StatusExpired
	completed := now
	req.CompletedAt = &completed

	if err := e.store.UpdateRequest(ctx, req); err != nil {
		return err
	}
	metrics.RecordDecision(string(StatusExpired))

	e.audit.Record(ctx, audit.Entry{
		Action:     "approval_request_expire",
		EntityType: "approval_request",
		EntityID:   &req.ID,
		Changes:    map[string]interface{}{"status": string(StatusExpired)},
	})
	e.publish(req, notify.NewEvent(
		notify.EventApprovalExpired,
		"Approval Expired",
		fmt.Sprintf("%s expired before reaching quorum", req.Title),
		"approval_request", req.ID,
		map[string]interface{}{"status": string(StatusExpired)},
	))
	if e.completion != nil {
		e.completion(ctx, req)
	}
	return nil
}

func (e *Engine) publish(req *Request, ev notify.Event) {
	if req.OrganizationID != nil {
		ev.OrganizationID = *req.OrganizationID
	}
	e.notifier.Publish(ev)
}

func (e *Engine) attachVotes(ctx context.Context, req *Request) {
	votes, err := e.store.ListVotes(ctx, req.ID)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("Failed to load votes", err, map[string]interface{}{"request_id": req.ID})
		}
		return
	}
	if votes == nil {
		votes = []Vote{}
	}
	req.Votes = votes
}

func (e *Engine) resolveNames(ctx context.Context, req *Request) {
	if e.names == nil {
		return
	}
	if name, err := e.names.UserName(ctx, req.CreatedByID); err == nil {
		req.CreatedByName = name
	}
	for i := range req.Votes {
		if name, err := e.names.UserName(ctx, req.Votes[i].UserID); err == nil {
			req.Votes[i].UserName = name
		}
	}
}
