package ceremony

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager() *Manager {
	fixed := time.Date(2031, 6, 1, 9, 0, 0, 0, time.UTC)
	return NewManager(WithClock(func() time.Time { return fixed }))
}

func createTestCeremony(t *testing.T, m *Manager, witnesses ...string) *Ceremony {
	t.Helper()
	c, err := m.Create(context.Background(), CreateParams{
		Name:        "Root signing key 2031",
		KeyType:     "RSA",
		KeySize:     4096,
		WitnessIDs:  witnesses,
		CreatedByID: "admin-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func TestCreate(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	t.Run("starts pending with untouched witnesses", func(t *testing.T) {
		c := createTestCeremony(t, m, "alice", "bob", "carol")
		if c.Status != StatusPendingWitnesses {
			t.Errorf("status = %q, want %q", c.Status, StatusPendingWitnesses)
		}
		if len(c.Witnesses) != 3 {
			t.Fatalf("witnesses = %d, want 3", len(c.Witnesses))
		}
		for _, w := range c.Witnesses {
			if w.HasApproved {
				t.Errorf("witness %s approved at creation", w.UserID)
			}
		}
	})

	t.Run("rejects fewer than two witnesses", func(t *testing.T) {
		_, err := m.Create(ctx, CreateParams{Name: "x", WitnessIDs: []string{"alice"}})
		if !errors.Is(err, ErrTooFewWitnesses) {
			t.Errorf("err = %v, want ErrTooFewWitnesses", err)
		}
	})

	t.Run("deduplicates witness ids", func(t *testing.T) {
		_, err := m.Create(ctx, CreateParams{Name: "x", WitnessIDs: []string{"alice", "alice", ""}})
		if !errors.Is(err, ErrTooFewWitnesses) {
			t.Errorf("err = %v, want ErrTooFewWitnesses after dedup", err)
		}
	})

	t.Run("defaults key type and size", func(t *testing.T) {
		c, err := m.Create(ctx, CreateParams{Name: "x", WitnessIDs: []string{"alice", "bob"}})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if c.KeyType != "RSA" || c.KeySize != 4096 {
			t.Errorf("defaults = %s/%d, want RSA/4096", c.KeyType, c.KeySize)
		}
	})
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("last approval makes the ceremony ready", func(t *testing.T) {
		m := newTestManager()
		c := createTestCeremony(t, m, "alice", "bob")

		c, err := m.Approve(ctx, c.ID, "alice")
		if err != nil {
			t.Fatalf("approve alice: %v", err)
		}
		if c.Status != StatusPendingWitnesses {
			t.Errorf("status after one approval = %q, want %q", c.Status, StatusPendingWitnesses)
		}
		if c.Witnesses[0].ApprovedAt == nil {
			t.Error("ApprovedAt not recorded")
		}

		c, err = m.Approve(ctx, c.ID, "bob")
		if err != nil {
			t.Fatalf("approve bob: %v", err)
		}
		if c.Status != StatusReady {
			t.Errorf("status after all approvals = %q, want %q", c.Status, StatusReady)
		}
	})

	t.Run("non-witness is rejected", func(t *testing.T) {
		m := newTestManager()
		c := createTestCeremony(t, m, "alice", "bob")
		if _, err := m.Approve(ctx, c.ID, "mallory"); !errors.Is(err, ErrNotWitness) {
			t.Errorf("err = %v, want ErrNotWitness", err)
		}
	})

	t.Run("double approval is rejected", func(t *testing.T) {
		m := newTestManager()
		c := createTestCeremony(t, m, "alice", "bob")
		if _, err := m.Approve(ctx, c.ID, "alice"); err != nil {
			t.Fatalf("first approval: %v", err)
		}
		if _, err := m.Approve(ctx, c.ID, "alice"); !errors.Is(err, ErrAlreadyApproved) {
			t.Errorf("err = %v, want ErrAlreadyApproved", err)
		}
	})

	t.Run("unknown ceremony", func(t *testing.T) {
		m := newTestManager()
		if _, err := m.Approve(ctx, "nope", "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("requires all witnesses", func(t *testing.T) {
		m := newTestManager()
		c := createTestCeremony(t, m, "alice", "bob")
		if _, err := m.Generate(ctx, c.ID); !errors.Is(err, ErrNotReady) {
			t.Errorf("err = %v, want ErrNotReady", err)
		}
	})

	t.Run("produces a key and completes", func(t *testing.T) {
		m := newTestManager()
		c := createTestCeremony(t, m, "alice", "bob")
		m.Approve(ctx, c.ID, "alice")
		m.Approve(ctx, c.ID, "bob")

		c, err := m.Generate(ctx, c.ID)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if c.Status != StatusCompleted {
			t.Errorf("status = %q, want %q", c.Status, StatusCompleted)
		}
		if c.KeyID == "" || c.Fingerprint == "" {
			t.Errorf("key material missing: key_id=%q fingerprint=%q", c.KeyID, c.Fingerprint)
		}
		if c.CompletedAt == nil {
			t.Error("CompletedAt not set")
		}
	})

	t.Run("completed ceremony cannot generate again", func(t *testing.T) {
		m := newTestManager()
		c := createTestCeremony(t, m, "alice", "bob")
		m.Approve(ctx, c.ID, "alice")
		m.Approve(ctx, c.ID, "bob")
		if _, err := m.Generate(ctx, c.ID); err != nil {
			t.Fatalf("first Generate: %v", err)
		}
		if _, err := m.Generate(ctx, c.ID); !errors.Is(err, ErrNotReady) {
			t.Errorf("err = %v, want ErrNotReady", err)
		}
	})
}

func TestList(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	c1 := createTestCeremony(t, m, "alice", "bob")
	createTestCeremony(t, m, "carol", "dave")
	m.Approve(ctx, c1.ID, "alice")
	m.Approve(ctx, c1.ID, "bob")

	all, err := m.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}

	ready, err := m.List(ctx, StatusReady)
	if err != nil {
		t.Fatalf("List ready: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != c1.ID {
		t.Errorf("ready filter returned %d ceremonies", len(ready))
	}

	if _, err := m.List(ctx, "bogus"); err == nil {
		t.Error("expected error for invalid status filter")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := newTestManager()
	c := createTestCeremony(t, m, "alice", "bob")

	c.Witnesses[0].HasApproved = true

	fresh, err := m.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.Witnesses[0].HasApproved {
		t.Error("mutating a returned ceremony leaked into the registry")
	}
}
