package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the DDL applied at startup. Statements are idempotent so the
// server can run them on every boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		parent_id UUID REFERENCES organizations(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		hsm_slot INTEGER,
		admin_email TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'developer',
		organization_id UUID REFERENCES organizations(id) ON DELETE SET NULL,
		azure_ad_oid TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		hashed_password TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS pkcs11_keys (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		key_size INTEGER,
		curve TEXT,
		fingerprint TEXT NOT NULL,
		hsm_slot INTEGER NOT NULL DEFAULT 0,
		organization_id UUID REFERENCES organizations(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_by_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS signing_configs (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		key_id UUID NOT NULL REFERENCES pkcs11_keys(id) ON DELETE CASCADE,
		hash_algorithm TEXT NOT NULL DEFAULT 'sha256',
		timestamp_authority TEXT,
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		organization_id UUID REFERENCES organizations(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		organization_id UUID REFERENCES organizations(id) ON DELETE SET NULL,
		signing_config_id UUID REFERENCES signing_configs(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		changes JSONB,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS approval_requests (
		id UUID PRIMARY KEY,
		approval_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entity_data TEXT,
		required_approvals INTEGER NOT NULL,
		total_approvers INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		current_approvals INTEGER NOT NULL DEFAULT 0,
		current_rejections INTEGER NOT NULL DEFAULT 0,
		organization_id UUID REFERENCES organizations(id) ON DELETE SET NULL,
		created_by_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_approval_requests_status ON approval_requests (status)`,
	`CREATE INDEX IF NOT EXISTS idx_approval_requests_expires_at ON approval_requests (expires_at) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS approval_votes (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES approval_requests(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		vote TEXT NOT NULL,
		comment TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (request_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS quorum_policies (
		id UUID PRIMARY KEY,
		organization_id UUID REFERENCES organizations(id) ON DELETE CASCADE,
		approval_type TEXT NOT NULL,
		required_approvals INTEGER NOT NULL,
		total_approvers INTEGER NOT NULL,
		expiry_hours INTEGER NOT NULL DEFAULT 72,
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quorum_policies_lookup ON quorum_policies (approval_type, organization_id) WHERE is_enabled`,
}

// InitSchema applies the schema to the database
func InitSchema(ctx context.Context, database *sql.DB) error {
	for _, stmt := range schema {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}
	return nil
}
