package quorum_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

func seedPolicy(t *testing.T, e *quorum.Engine, orgID *string, required, total int, enabled bool) *quorum.Policy {
	t.Helper()
	p, err := e.CreatePolicy(context.Background(), quorum.PolicyInput{
		OrganizationID:    orgID,
		ApprovalType:      quorum.TypeKeyGeneration,
		RequiredApprovals: required,
		TotalApprovers:    total,
		ExpiryHours:       24,
		IsEnabled:         enabled,
		ActorID:           "admin",
	})
	if err != nil {
		t.Fatalf("CreatePolicy failed: %v", err)
	}
	return p
}

func TestResolvePolicy(t *testing.T) {
	ctx := context.Background()
	defaults := quorum.PolicyDefaults{RequiredApprovals: 2, TotalApprovers: 3, ExpiryHours: 72}
	orgID := "org-1"

	t.Run("org policy wins over global", func(t *testing.T) {
		e, store := newTestEngine()
		seedPolicy(t, e, nil, 2, 3, true)
		seedPolicy(t, e, &orgID, 3, 5, true)

		eff, err := quorum.ResolvePolicy(ctx, store, quorum.TypeKeyGeneration, &orgID, defaults)
		if err != nil {
			t.Fatalf("ResolvePolicy failed: %v", err)
		}
		if eff.RequiredApprovals != 3 || eff.TotalApprovers != 5 {
			t.Errorf("resolved %d of %d, want 3 of 5", eff.RequiredApprovals, eff.TotalApprovers)
		}
	})

	t.Run("global policy when org has none", func(t *testing.T) {
		e, store := newTestEngine()
		seedPolicy(t, e, nil, 4, 7, true)

		eff, err := quorum.ResolvePolicy(ctx, store, quorum.TypeKeyGeneration, &orgID, defaults)
		if err != nil {
			t.Fatalf("ResolvePolicy failed: %v", err)
		}
		if eff.RequiredApprovals != 4 || eff.TotalApprovers != 7 {
			t.Errorf("resolved %d of %d, want 4 of 7", eff.RequiredApprovals, eff.TotalApprovers)
		}
	})

	t.Run("disabled policies are skipped", func(t *testing.T) {
		e, store := newTestEngine()
		seedPolicy(t, e, &orgID, 3, 5, false)
		seedPolicy(t, e, nil, 4, 7, false)

		eff, err := quorum.ResolvePolicy(ctx, store, quorum.TypeKeyGeneration, &orgID, defaults)
		if err != nil {
			t.Fatalf("ResolvePolicy failed: %v", err)
		}
		if eff.RequiredApprovals != defaults.RequiredApprovals || eff.TotalApprovers != defaults.TotalApprovers {
			t.Errorf("resolved %d of %d, want defaults %d of %d",
				eff.RequiredApprovals, eff.TotalApprovers,
				defaults.RequiredApprovals, defaults.TotalApprovers)
		}
	})

	t.Run("defaults when no policy exists", func(t *testing.T) {
		_, store := newTestEngine()
		eff, err := quorum.ResolvePolicy(ctx, store, quorum.TypeKeyGeneration, nil, defaults)
		if err != nil {
			t.Fatalf("ResolvePolicy failed: %v", err)
		}
		if eff.ExpiryHours != 72 {
			t.Errorf("expiry = %d, want 72", eff.ExpiryHours)
		}
	})

	t.Run("policy of another type is ignored", func(t *testing.T) {
		e, store := newTestEngine()
		if _, err := e.CreatePolicy(ctx, quorum.PolicyInput{
			ApprovalType:      quorum.TypeUserRoleChange,
			RequiredApprovals: 5,
			TotalApprovers:    9,
			IsEnabled:         true,
			ActorID:           "admin",
		}); err != nil {
			t.Fatalf("CreatePolicy failed: %v", err)
		}

		eff, err := quorum.ResolvePolicy(ctx, store, quorum.TypeKeyGeneration, nil, defaults)
		if err != nil {
			t.Fatalf("ResolvePolicy failed: %v", err)
		}
		if eff.RequiredApprovals != defaults.RequiredApprovals {
			t.Errorf("resolved %d, want default %d", eff.RequiredApprovals, defaults.RequiredApprovals)
		}
	})
}

func TestPolicyCRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("create rejects invalid quorum", func(t *testing.T) {
		e, _ := newTestEngine()
		_, err := e.CreatePolicy(ctx, quorum.PolicyInput{
			ApprovalType:      quorum.TypeKeyGeneration,
			RequiredApprovals: 4,
			TotalApprovers:    3,
			ActorID:           "admin",
		})
		if !errors.Is(err, quorum.ErrInvalidPolicy) {
			t.Errorf("err = %v, want ErrInvalidPolicy", err)
		}
	})

	t.Run("update applies new parameters", func(t *testing.T) {
		e, _ := newTestEngine()
		p := seedPolicy(t, e, nil, 2, 3, true)

		updated, err := e.UpdatePolicy(ctx, p.ID, quorum.PolicyInput{
			ApprovalType:      quorum.TypeKeyGeneration,
			RequiredApprovals: 3,
			TotalApprovers:    5,
			ExpiryHours:       48,
			IsEnabled:         false,
			ActorID:           "admin",
		})
		if err != nil {
			t.Fatalf("UpdatePolicy failed: %v", err)
		}
		if updated.RequiredApprovals != 3 || updated.TotalApprovers != 5 || updated.IsEnabled {
			t.Errorf("update not applied: %+v", updated)
		}
	})

	t.Run("delete then get is not found", func(t *testing.T) {
		e, _ := newTestEngine()
		p := seedPolicy(t, e, nil, 2, 3, true)

		if err := e.DeletePolicy(ctx, p.ID, "admin"); err != nil {
			t.Fatalf("DeletePolicy failed: %v", err)
		}
		if _, err := e.GetPolicy(ctx, p.ID); !errors.Is(err, quorum.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if err := e.DeletePolicy(ctx, p.ID, "admin"); !errors.Is(err, quorum.ErrNotFound) {
			t.Errorf("double delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list scoped to organization", func(t *testing.T) {
		e, _ := newTestEngine()
		orgID := "org-1"
		seedPolicy(t, e, nil, 2, 3, true)
		seedPolicy(t, e, &orgID, 3, 5, true)

		all, err := e.ListPolicies(ctx, nil)
		if err != nil {
			t.Fatalf("ListPolicies failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("unscoped list = %d policies, want 2", len(all))
		}

		scoped, err := e.ListPolicies(ctx, &orgID)
		if err != nil {
			t.Fatalf("ListPolicies failed: %v", err)
		}
		if len(scoped) != 1 {
			t.Errorf("scoped list = %d policies, want 1", len(scoped))
		}
	})
}
