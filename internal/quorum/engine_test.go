package quorum_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestEngine(opts ...quorum.Option) (*quorum.Engine, *memory.Store) {
	store := memory.NewStore()
	return quorum.NewEngine(store, opts...), store
}

func createRequest(t *testing.T, e *quorum.Engine, required, total int) *quorum.Request {
	t.Helper()
	req, err := e.CreateRequest(context.Background(), quorum.CreateRequestInput{
		ApprovalType:      quorum.TypeKeyGeneration,
		Title:             "Generate signing key",
		EntityType:        "pkcs11_key",
		EntityID:          "key-1",
		RequiredApprovals: required,
		TotalApprovers:    total,
		CreatedByID:       "creator",
	})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	return req
}

func TestCreateRequest(t *testing.T) {
	t.Run("starts pending with zero counters", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 2, 3)

		if req.Status != quorum.StatusPending {
			t.Errorf("status = %s, want %s", req.Status, quorum.StatusPending)
		}
		if req.CurrentApprovals != 0 || req.CurrentRejections != 0 {
			t.Errorf("counters = %d/%d, want 0/0", req.CurrentApprovals, req.CurrentRejections)
		}
		if req.RequiredApprovals != 2 || req.TotalApprovers != 3 {
			t.Errorf("quorum = %d of %d, want 2 of 3", req.RequiredApprovals, req.TotalApprovers)
		}
		if req.ExpiresAt == nil {
			t.Error("expected an expiry deadline from the default policy")
		}
	})

	t.Run("rejects invalid approval type", func(t *testing.T) {
		e, _ := newTestEngine()
		_, err := e.CreateRequest(context.Background(), quorum.CreateRequestInput{
			ApprovalType: "coffee_break",
			Title:        "Nope",
			EntityType:   "pkcs11_key",
			EntityID:     "key-1",
			CreatedByID:  "creator",
		})
		if err == nil {
			t.Fatal("expected an error for unknown approval type")
		}
	})

	t.Run("rejects invalid quorum parameters", func(t *testing.T) {
		e, _ := newTestEngine()
		_, err := e.CreateRequest(context.Background(), quorum.CreateRequestInput{
			ApprovalType:      quorum.TypeKeyGeneration,
			Title:             "Bad quorum",
			EntityType:        "pkcs11_key",
			EntityID:          "key-1",
			RequiredApprovals: 5,
			TotalApprovers:    3,
			CreatedByID:       "creator",
		})
		if !errors.Is(err, quorum.ErrInvalidPolicy) {
			t.Errorf("err = %v, want ErrInvalidPolicy", err)
		}
	})

	t.Run("omits expiry when hours is zero", func(t *testing.T) {
		e, _ := newTestEngine(quorum.WithDefaults(quorum.PolicyDefaults{
			RequiredApprovals: 2,
			TotalApprovers:    3,
			ExpiryHours:       0,
		}))
		req := createRequest(t, e, 0, 0)
		if req.ExpiresAt != nil {
			t.Errorf("expires_at = %v, want none", req.ExpiresAt)
		}
	})
}

func TestVote(t *testing.T) {
	ctx := context.Background()

	t.Run("approves at quorum", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 2, 3)

		got, err := e.Vote(ctx, req.ID, "alice", quorum.VoteApprove, "lgtm")
		if err != nil {
			t.Fatalf("first vote failed: %v", err)
		}
		if got.Status != quorum.StatusPending {
			t.Errorf("status after one approval = %s, want pending", got.Status)
		}

		got, err = e.Vote(ctx, req.ID, "bob", quorum.VoteApprove, "")
		if err != nil {
			t.Fatalf("second vote failed: %v", err)
		}
		if got.Status != quorum.StatusApproved {
			t.Errorf("status after quorum = %s, want approved", got.Status)
		}
		if got.CurrentApprovals != 2 {
			t.Errorf("approvals = %d, want 2", got.CurrentApprovals)
		}
		if got.CompletedAt == nil {
			t.Error("completed_at not set on terminal transition")
		}
		if len(got.Votes) != 2 {
			t.Errorf("votes = %d, want 2", len(got.Votes))
		}
	})

	t.Run("rejects early when quorum is unreachable", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 2, 3)

		if _, err := e.Vote(ctx, req.ID, "alice", quorum.VoteReject, "no"); err != nil {
			t.Fatalf("first rejection failed: %v", err)
		}
		got, err := e.Vote(ctx, req.ID, "bob", quorum.VoteReject, "also no")
		if err != nil {
			t.Fatalf("second rejection failed: %v", err)
		}
		// 3 approvers - 2 rejections leaves 1 < 2 required.
		if got.Status != quorum.StatusRejected {
			t.Errorf("status = %s, want rejected", got.Status)
		}
	})

	t.Run("duplicate vote conflicts", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 2, 3)

		if _, err := e.Vote(ctx, req.ID, "alice", quorum.VoteApprove, ""); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		_, err := e.Vote(ctx, req.ID, "alice", quorum.VoteReject, "changed my mind")
		if !errors.Is(err, quorum.ErrAlreadyVoted) {
			t.Errorf("err = %v, want ErrAlreadyVoted", err)
		}

		got, err := e.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if got.CurrentApprovals != 1 || got.CurrentRejections != 0 {
			t.Errorf("counters = %d/%d after rejected duplicate, want 1/0",
				got.CurrentApprovals, got.CurrentRejections)
		}
	})

	t.Run("creator cannot vote", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 2, 3)

		_, err := e.Vote(ctx, req.ID, "creator", quorum.VoteApprove, "")
		if !errors.Is(err, quorum.ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("vote on decided request conflicts", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 1, 3)

		if _, err := e.Vote(ctx, req.ID, "alice", quorum.VoteApprove, ""); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		_, err := e.Vote(ctx, req.ID, "bob", quorum.VoteApprove, "")
		if !errors.Is(err, quorum.ErrNotPending) {
			t.Errorf("err = %v, want ErrNotPending", err)
		}

		got, err := e.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if got.Status != quorum.StatusApproved {
			t.Errorf("terminal status moved to %s", got.Status)
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		e, _ := newTestEngine()
		_, err := e.Vote(ctx, "missing", "alice", quorum.VoteApprove, "")
		if !errors.Is(err, quorum.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid decision", func(t *testing.T) {
		e, _ := newTestEngine()
		req := createRequest(t, e, 2, 3)
		_, err := e.Vote(ctx, req.ID, "alice", "abstain", "")
		if !errors.Is(err, quorum.ErrInvalidVote) {
			t.Errorf("err = %v, want ErrInvalidVote", err)
		}
	})

	t.Run("vote on overdue request expires it", func(t *testing.T) {
		clock := newFakeClock(time.Now().UTC())
		e, _ := newTestEngine(quorum.WithClock(clock.Now), quorum.WithDefaults(quorum.PolicyDefaults{
			RequiredApprovals: 2,
			TotalApprovers:    3,
			ExpiryHours:       1,
		}))
		req := createRequest(t, e, 0, 0)

		clock.Set(clock.Now().Add(2 * time.Hour))
		_, err := e.Vote(ctx, req.ID, "alice", quorum.VoteApprove, "")
		if !errors.Is(err, quorum.ErrExpired) {
			t.Fatalf("err = %v, want ErrExpired", err)
		}

		got, err := e.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatalf("GetRequest failed: %v", err)
		}
		if got.Status != quorum.StatusExpired {
			t.Errorf("status = %s, want expired", got.Status)
		}
		if got.CurrentApprovals != 0 {
			t.Errorf("approvals = %d after rejected vote, want 0", got.CurrentApprovals)
		}
	})
}

func TestVoteConcurrent(t *testing.T) {
	e, _ := newTestEngine()
	req := createRequest(t, e, 2, 2)

	voters := []string{"alice", "bob"}
	var wg sync.WaitGroup
	errs := make([]error, len(voters))
	for i, voter := range voters {
		wg.Add(1)
		go func(i int, voter string) {
			defer wg.Done()
			_, errs[i] = e.Vote(context.Background(), req.ID, voter, quorum.VoteApprove, "")
		}(i, voter)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("vote %d failed: %v", i, err)
		}
	}

	got, err := e.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.CurrentApprovals != 2 {
		t.Errorf("approvals = %d, want 2 (lost update)", got.CurrentApprovals)
	}
	if got.Status != quorum.StatusApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
	if len(got.Votes) != 2 {
		t.Errorf("votes = %d, want 2", len(got.Votes))
	}
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()

	// A fixed instant far from the wall clock: the sweep must see requests
	// through the injected clock, not through real time.
	start := time.Date(2031, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	e, _ := newTestEngine(quorum.WithClock(clock.Now), quorum.WithDefaults(quorum.PolicyDefaults{
		RequiredApprovals: 2,
		TotalApprovers:    3,
		ExpiryHours:       1,
	}))

	overdue := createRequest(t, e, 0, 0)

	clock.Set(start.Add(3 * time.Hour))
	fresh := createRequest(t, e, 0, 0)

	n, err := e.ExpireOverdue(ctx)
	if err != nil {
		t.Fatalf("ExpireOverdue failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d requests, want 1", n)
	}

	got, err := e.GetRequest(ctx, overdue.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.Status != quorum.StatusExpired {
		t.Errorf("overdue request status = %s, want expired", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on expiry")
	}

	got, err = e.GetRequest(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.Status != quorum.StatusPending {
		t.Errorf("fresh request status = %s, want pending", got.Status)
	}
}

func TestCompletionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("fires once at quorum with the terminal request", func(t *testing.T) {
		var mu sync.Mutex
		var completed []*quorum.Request
		e, _ := newTestEngine(quorum.WithCompletionHandler(func(_ context.Context, req *quorum.Request) {
			mu.Lock()
			completed = append(completed, req)
			mu.Unlock()
		}))
		req := createRequest(t, e, 2, 3)

		if _, err := e.Vote(ctx, req.ID, "alice", quorum.VoteApprove, ""); err != nil {
			t.Fatalf("first vote failed: %v", err)
		}
		mu.Lock()
		if len(completed) != 0 {
			t.Errorf("handler fired %d times before quorum, want 0", len(completed))
		}
		mu.Unlock()

		if _, err := e.Vote(ctx, req.ID, "bob", quorum.VoteApprove, ""); err != nil {
			t.Fatalf("second vote failed: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(completed) != 1 {
			t.Fatalf("handler fired %d times, want 1", len(completed))
		}
		got := completed[0]
		if got.Status != quorum.StatusApproved {
			t.Errorf("completed status = %s, want approved", got.Status)
		}
		if got.EntityType != "pkcs11_key" || got.EntityID != "key-1" {
			t.Errorf("entity ref = %s/%s, want pkcs11_key/key-1", got.EntityType, got.EntityID)
		}
	})

	t.Run("fires on expiry", func(t *testing.T) {
		clock := newFakeClock(time.Date(2031, 6, 1, 9, 0, 0, 0, time.UTC))
		var mu sync.Mutex
		var statuses []quorum.ApprovalStatus
		e, _ := newTestEngine(
			quorum.WithClock(clock.Now),
			quorum.WithDefaults(quorum.PolicyDefaults{RequiredApprovals: 2, TotalApprovers: 3, ExpiryHours: 1}),
			quorum.WithCompletionHandler(func(_ context.Context, req *quorum.Request) {
				mu.Lock()
				statuses = append(statuses, req.Status)
				mu.Unlock()
			}),
		)
		createRequest(t, e, 0, 0)

		clock.Set(clock.Now().Add(2 * time.Hour))
		n, err := e.ExpireOverdue(ctx)
		if err != nil {
			t.Fatalf("ExpireOverdue failed: %v", err)
		}
		if n != 1 {
			t.Fatalf("expired %d requests, want 1", n)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(statuses) != 1 || statuses[0] != quorum.StatusExpired {
			t.Errorf("handler saw %v, want one expired completion", statuses)
		}
	})
}

func TestListRequests(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	orgID := "org-1"
	first := createRequest(t, e, 1, 3)
	if _, err := e.Vote(ctx, first.ID, "alice", quorum.VoteApprove, ""); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if _, err := e.CreateRequest(ctx, quorum.CreateRequestInput{
		ApprovalType:   quorum.TypeKeyRevocation,
		Title:          "Revoke key",
		EntityType:     "pkcs11_key",
		EntityID:       "key-2",
		OrganizationID: &orgID,
		CreatedByID:    "creator",
	}); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	pending := quorum.StatusPending
	reqs, err := e.ListRequests(ctx, quorum.RequestFilter{Status: &pending})
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("pending requests = %d, want 1", len(reqs))
	}

	reqs, err = e.ListRequests(ctx, quorum.RequestFilter{OrganizationID: &orgID})
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(reqs) != 1 || reqs[0].EntityID != "key-2" {
		t.Fatalf("org-scoped listing = %d requests, want the revocation request", len(reqs))
	}
}
