package quorum

import (
	"context"
	"errors"
	"fmt"
)

// EffectivePolicy is the (M, N, expiry) selected for a new request.
type EffectivePolicy struct {
	RequiredApprovals int
	TotalApprovers    int
	ExpiryHours       int
}

// ResolvePolicy picks the effective quorum configuration for a new request.
//
// Precedence, first match wins:
//  1. an enabled policy scoped to the exact organization for this type,
//  2. an enabled global policy (no organization) for this type,
//  3. the caller-supplied defaults, used verbatim.
//
// No side effects. The resolved configuration is re-checked against the
// M <= N invariant even though policy writes enforce it, so a bad row can
// never produce an unapprovable request.
func ResolvePolicy(ctx context.Context, store Store, approvalType ApprovalType, organizationID *string, defaults PolicyDefaults) (EffectivePolicy, error) {
	if organizationID != nil {
		p, err := store.FindEnabledPolicy(ctx, approvalType, organizationID)
		if err == nil {
			return effective(p.RequiredApprovals, p.TotalApprovers, p.ExpiryHours)
		}
		if !errors.Is(err, ErrNotFound) {
			return EffectivePolicy{}, err
		}
	}

	p, err := store.FindEnabledPolicy(ctx, approvalType, nil)
	if err == nil {
		return effective(p.RequiredApprovals, p.TotalApprovers, p.ExpiryHours)
	}
	if !errors.Is(err, ErrNotFound) {
		return EffectivePolicy{}, err
	}

	return effective(defaults.RequiredApprovals, defaults.TotalApprovers, defaults.ExpiryHours)
}

func effective(required, total, expiryHours int) (EffectivePolicy, error) {
	if err := ValidateQuorum(required, total); err != nil {
		return EffectivePolicy{}, err
	}
	return EffectivePolicy{
		RequiredApprovals: required,
		TotalApprovers:    total,
		ExpiryHours:       expiryHours,
	}, nil
}

// ValidateQuorum enforces 0 < M <= N.
func ValidateQuorum(required, total int) error {
	if required < 1 {
		return fmt.Errorf("%w: required approvals must be at least 1", ErrInvalidPolicy)
	}
	if required > total {
		return fmt.Errorf("%w: required approvals (%d) cannot exceed total approvers (%d)", ErrInvalidPolicy, required, total)
	}
	return nil
}
