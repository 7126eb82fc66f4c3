package quorum

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
)

// PolicyInput carries policy create/update parameters.
type PolicyInput struct {
	OrganizationID    *string
	ApprovalType      ApprovalType
	RequiredApprovals int
	TotalApprovers    int
	ExpiryHours       int
	IsEnabled         bool
	ActorID           string
}

// CreatePolicy persists a new policy after enforcing the M <= N invariant.
func (e *Engine) CreatePolicy(ctx context.Context, in PolicyInput) (*Policy, error) {
	if !in.ApprovalType.Valid() {
		return nil, fmt.Errorf("invalid approval type %q", in.ApprovalType)
	}
	if err := ValidateQuorum(in.RequiredApprovals, in.TotalApprovers); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	p := &Policy{
		ID:                uuid.New().String(),
		OrganizationID:    in.OrganizationID,
		ApprovalType:      in.ApprovalType,
		RequiredApprovals: in.RequiredApprovals,
		TotalApprovers:    in.TotalApprovers,
		ExpiryHours:       in.ExpiryHours,
		IsEnabled:         in.IsEnabled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.store.CreatePolicy(ctx, p); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.Entry{
		ActorID:    in.ActorID,
		Action:     "quorum_policy_create",
		EntityType: "quorum_policy",
		EntityID:   &p.ID,
		Changes: map[string]interface{}{
			"approval_type":      string(p.ApprovalType),
			"required_approvals": p.RequiredApprovals,
			"total_approvers":    p.TotalApprovers,
			"expiry_hours":       p.ExpiryHours,
			"is_enabled":         p.IsEnabled,
		},
	})
	return p, nil
}

// UpdatePolicy applies new parameters to an existing policy.
func (e *Engine) UpdatePolicy(ctx context.Context, id string, in PolicyInput) (*Policy, error) {
	if !in.ApprovalType.Valid() {
		return nil, fmt.Errorf("invalid approval type %q", in.ApprovalType)
	}
	if err := ValidateQuorum(in.RequiredApprovals, in.TotalApprovers); err != nil {
		return nil, err
	}

	p, err := e.store.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}

	p.ApprovalType = in.ApprovalType
	p.RequiredApprovals = in.RequiredApprovals
	p.TotalApprovers = in.TotalApprovers
	p.ExpiryHours = in.ExpiryHours
	p.IsEnabled = in.IsEnabled
	p.UpdatedAt = e.now().UTC()

	if err := e.store.UpdatePolicy(ctx, p); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, audit.Entry{
		ActorID:    in.ActorID,
		Action:     "quorum_policy_update",
		EntityType: "quorum_policy",
		EntityID:   &p.ID,
		Changes: map[string]interface{}{
			"approval_type":      string(p.ApprovalType),
			"required_approvals": p.RequiredApprovals,
			"total_approvers":    p.TotalApprovers,
			"expiry_hours":       p.ExpiryHours,
			"is_enabled":         p.IsEnabled,
		},
	})
	return p, nil
}

// DeletePolicy removes a policy.
func (e *Engine) DeletePolicy(ctx context.Context, id, actorID string) error {
	if _, err := e.store.GetPolicy(ctx, id); err != nil {
		return err
	}
	if err := e.store.DeletePolicy(ctx, id); err != nil {
		return err
	}

	e.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     "quorum_policy_delete",
		EntityType: "quorum_policy",
		EntityID:   &id,
	})
	return nil
}

// ListPolicies returns policies, optionally scoped to an organization.
func (e *Engine) ListPolicies(ctx context.Context, organizationID *string) ([]*Policy, error) {
	return e.store.ListPolicies(ctx, organizationID)
}

// GetPolicy returns a single policy.
func (e *Engine) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	return e.store.GetPolicy(ctx, id)
}
