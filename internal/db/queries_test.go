package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	apptest "github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/testing"
)

func TestQueries_Users(t *testing.T) {
	tdb := apptest.SetupTestDB(t)
	defer tdb.CleanupTestDB(t)

	ctx := context.Background()

	t.Run("create and fetch user", func(t *testing.T) {
		user, err := apptest.CreateTestUser(ctx, tdb.Queries, "dev@example.com", "password123", "developer")
		if err != nil {
			t.Fatalf("CreateTestUser() error = %v", err)
		}
		if user.ID == "" {
			t.Error("Expected user ID to be set")
		}

		fetched, err := tdb.Queries.GetUserByEmail(ctx, "dev@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail() error = %v", err)
		}
		if fetched.ID != user.ID {
			t.Errorf("Expected ID %s, got %s", user.ID, fetched.ID)
		}
		if fetched.Role != "developer" {
			t.Errorf("Expected role developer, got %s", fetched.Role)
		}
		if fetched.Status != "active" {
			t.Errorf("Expected status active, got %s", fetched.Status)
		}
	})

	t.Run("update user role", func(t *testing.T) {
		user, err := apptest.CreateTestUser(ctx, tdb.Queries, "promote@example.com", "password123", "developer")
		if err != nil {
			t.Fatalf("CreateTestUser() error = %v", err)
		}

		user.Role = "approver"
		if err := tdb.Queries.UpdateUser(ctx, user); err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}

		fetched, err := tdb.Queries.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUserByID() error = %v", err)
		}
		if fetched.Role != "approver" {
			t.Errorf("Expected role approver, got %s", fetched.Role)
		}
	})

	t.Run("count users", func(t *testing.T) {
		count, err := tdb.Queries.CountUsers(ctx)
		if err != nil {
			t.Fatalf("CountUsers() error = %v", err)
		}
		if count < 2 {
			t.Errorf("Expected at least 2 users, got %d", count)
		}
	})

	t.Run("missing user returns ErrNoRows", func(t *testing.T) {
		_, err := tdb.Queries.GetUserByEmail(ctx, "nobody@example.com")
		if err != sql.ErrNoRows {
			t.Errorf("Expected sql.ErrNoRows, got %v", err)
		}
	})
}

func TestQueries_Organizations(t *testing.T) {
	tdb := apptest.SetupTestDB(t)
	defer tdb.CleanupTestDB(t)

	ctx := context.Background()

	t.Run("create and fetch by slug", func(t *testing.T) {
		org, err := apptest.CreateTestOrganization(ctx, tdb.Queries, "Acme Corp", "acme-corp", nil)
		if err != nil {
			t.Fatalf("CreateTestOrganization() error = %v", err)
		}

		fetched, err := tdb.Queries.GetOrganizationBySlug(ctx, "acme-corp")
		if err != nil {
			t.Fatalf("GetOrganizationBySlug() error = %v", err)
		}
		if fetched.ID != org.ID {
			t.Errorf("Expected ID %s, got %s", org.ID, fetched.ID)
		}
	})

	t.Run("child org keeps parent reference", func(t *testing.T) {
		parent, err := apptest.CreateTestOrganization(ctx, tdb.Queries, "Parent Inc", "parent-inc", nil)
		if err != nil {
			t.Fatalf("CreateTestOrganization() error = %v", err)
		}
		child, err := apptest.CreateTestOrganization(ctx, tdb.Queries, "Child Team", "child-team", &parent.ID)
		if err != nil {
			t.Fatalf("CreateTestOrganization() error = %v", err)
		}

		fetched, err := tdb.Queries.GetOrganization(ctx, child.ID)
		if err != nil {
			t.Fatalf("GetOrganization() error = %v", err)
		}
		if fetched.ParentID == nil || *fetched.ParentID != parent.ID {
			t.Errorf("Expected parent ID %s, got %v", parent.ID, fetched.ParentID)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		orgs, err := tdb.Queries.ListOrganizations(ctx)
		if err != nil {
			t.Fatalf("ListOrganizations() error = %v", err)
		}
		if len(orgs) < 3 {
			t.Errorf("Expected at least 3 organizations, got %d", len(orgs))
		}

		if err := tdb.Queries.DeleteOrganization(ctx, orgs[0].ID); err != nil {
			t.Fatalf("DeleteOrganization() error = %v", err)
		}
	})
}

func TestQueries_Keys(t *testing.T) {
	tdb := apptest.SetupTestDB(t)
	defer tdb.CleanupTestDB(t)

	ctx := context.Background()

	owner, err := apptest.CreateTestAdmin(ctx, tdb.Queries, "keyowner@example.com", "password123")
	if err != nil {
		t.Fatalf("CreateTestAdmin() error = %v", err)
	}

	t.Run("create and fetch key", func(t *testing.T) {
		key, err := apptest.CreateTestKey(ctx, tdb.Queries, "release-key", "SHA256:aaaa", owner.ID)
		if err != nil {
			t.Fatalf("CreateTestKey() error = %v", err)
		}

		fetched, err := tdb.Queries.GetKey(ctx, key.ID)
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		if fetched.Fingerprint != "SHA256:aaaa" {
			t.Errorf("Expected fingerprint SHA256:aaaa, got %s", fetched.Fingerprint)
		}
		if fetched.KeySize == nil || *fetched.KeySize != 4096 {
			t.Errorf("Expected key size 4096, got %v", fetched.KeySize)
		}
	})

	t.Run("revoke key via status update", func(t *testing.T) {
		key, err := apptest.CreateTestKey(ctx, tdb.Queries, "temp-key", "SHA256:bbbb", owner.ID)
		if err != nil {
			t.Fatalf("CreateTestKey() error = %v", err)
		}

		if err := tdb.Queries.UpdateKeyStatus(ctx, key.ID, "revoked"); err != nil {
			t.Fatalf("UpdateKeyStatus() error = %v", err)
		}

		fetched, err := tdb.Queries.GetKey(ctx, key.ID)
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		if fetched.Status != "revoked" {
			t.Errorf("Expected status revoked, got %s", fetched.Status)
		}
	})

	t.Run("list keys", func(t *testing.T) {
		keys, err := tdb.Queries.ListKeys(ctx, nil)
		if err != nil {
			t.Fatalf("ListKeys() error = %v", err)
		}
		if len(keys) < 2 {
			t.Errorf("Expected at least 2 keys, got %d", len(keys))
		}
	})
}

func TestQueries_SigningConfigsAndProjects(t *testing.T) {
	tdb := apptest.SetupTestDB(t)
	defer tdb.CleanupTestDB(t)

	ctx := context.Background()

	owner, err := apptest.CreateTestAdmin(ctx, tdb.Queries, "signer@example.com", "password123")
	if err != nil {
		t.Fatalf("CreateTestAdmin() error = %v", err)
	}
	key, err := apptest.CreateTestKey(ctx, tdb.Queries, "config-key", "SHA256:cccc", owner.ID)
	if err != nil {
		t.Fatalf("CreateTestKey() error = %v", err)
	}

	cfg := &db.SigningConfig{
		Name:          "windows-release",
		KeyID:         key.ID,
		HashAlgorithm: "sha256",
		IsEnabled:     true,
	}
	if err := tdb.Queries.CreateSigningConfig(ctx, cfg); err != nil {
		t.Fatalf("CreateSigningConfig() error = %v", err)
	}

	t.Run("fetch and update config", func(t *testing.T) {
		fetched, err := tdb.Queries.GetSigningConfig(ctx, cfg.ID)
		if err != nil {
			t.Fatalf("GetSigningConfig() error = %v", err)
		}
		if fetched.HashAlgorithm != "sha256" {
			t.Errorf("Expected sha256, got %s", fetched.HashAlgorithm)
		}

		fetched.IsEnabled = false
		if err := tdb.Queries.UpdateSigningConfig(ctx, fetched); err != nil {
			t.Fatalf("UpdateSigningConfig() error = %v", err)
		}

		again, err := tdb.Queries.GetSigningConfig(ctx, cfg.ID)
		if err != nil {
			t.Fatalf("GetSigningConfig() error = %v", err)
		}
		if again.IsEnabled {
			t.Error("Expected config to be disabled")
		}
	})

	t.Run("project lifecycle", func(t *testing.T) {
		project := &db.Project{
			Name:            "installer",
			SigningConfigID: &cfg.ID,
			Status:          "active",
		}
		if err := tdb.Queries.CreateProject(ctx, project); err != nil {
			t.Fatalf("CreateProject() error = %v", err)
		}

		fetched, err := tdb.Queries.GetProject(ctx, project.ID)
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if fetched.SigningConfigID == nil || *fetched.SigningConfigID != cfg.ID {
			t.Errorf("Expected signing config %s, got %v", cfg.ID, fetched.SigningConfigID)
		}

		if err := tdb.Queries.DeleteProject(ctx, project.ID); err != nil {
			t.Fatalf("DeleteProject() error = %v", err)
		}
		if _, err := tdb.Queries.GetProject(ctx, project.ID); err != sql.ErrNoRows {
			t.Errorf("Expected sql.ErrNoRows after delete, got %v", err)
		}
	})
}

func TestQueries_AuditLogs(t *testing.T) {
	tdb := apptest.SetupTestDB(t)
	defer tdb.CleanupTestDB(t)

	ctx := context.Background()

	actor, err := apptest.CreateTestAdmin(ctx, tdb.Queries, "auditor@example.com", "password123")
	if err != nil {
		t.Fatalf("CreateTestAdmin() error = %v", err)
	}

	entries := []db.AuditLog{
		{UserID: actor.ID, Action: "key.generate", EntityType: "pkcs11_key"},
		{UserID: actor.ID, Action: "key.revoke", EntityType: "pkcs11_key"},
		{UserID: actor.ID, Action: "user.invite", EntityType: "user",
			Changes: map[string]interface{}{"role": "developer"}},
	}
	for i := range entries {
		if err := tdb.Queries.CreateAuditLog(ctx, &entries[i]); err != nil {
			t.Fatalf("CreateAuditLog() error = %v", err)
		}
	}

	t.Run("filter by action", func(t *testing.T) {
		action := "key.revoke"
		logs, err := tdb.Queries.ListAuditLogs(ctx, db.AuditLogFilter{Action: &action, Limit: 10})
		if err != nil {
			t.Fatalf("ListAuditLogs() error = %v", err)
		}
		if len(logs) != 1 {
			t.Fatalf("Expected 1 log, got %d", len(logs))
		}
		if logs[0].Action != "key.revoke" {
			t.Errorf("Expected action key.revoke, got %s", logs[0].Action)
		}
	})

	t.Run("filter by entity type", func(t *testing.T) {
		entityType := "pkcs11_key"
		logs, err := tdb.Queries.ListAuditLogs(ctx, db.AuditLogFilter{EntityType: &entityType, Limit: 10})
		if err != nil {
			t.Fatalf("ListAuditLogs() error = %v", err)
		}
		if len(logs) != 2 {
			t.Errorf("Expected 2 logs, got %d", len(logs))
		}
	})

	t.Run("changes round-trip", func(t *testing.T) {
		log, err := tdb.Queries.GetAuditLog(ctx, entries[2].ID)
		if err != nil {
			t.Fatalf("GetAuditLog() error = %v", err)
		}
		if log.Changes["role"] != "developer" {
			t.Errorf("Expected changes role=developer, got %v", log.Changes)
		}
	})
}
