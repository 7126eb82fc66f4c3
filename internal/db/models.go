package db

import (
	"time"
)

/* Organization represents a tenant in the signing hierarchy */
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Status      string    `json:"status"` // 'pending', 'active', 'rejected', 'suspended'
	HSMSlot     *int      `json:"hsm_slot,omitempty"`
	AdminEmail  string    `json:"admin_email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

/* User represents a user account */
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"` // 'super_admin', 'org_admin', 'approver', 'developer', 'auditor'
	OrganizationID *string   `json:"organization_id,omitempty"`
	AzureADOID     *string   `json:"azure_ad_oid,omitempty"`
	Status         string    `json:"status"` // 'invited', 'active', 'disabled'
	HashedPassword string    `json:"-"`      // Never serialize password hash
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

/* Pkcs11Key represents an HSM-backed signing key */
type Pkcs11Key struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Algorithm      string    `json:"algorithm"` // 'rsa', 'ecdsa'
	KeySize        *int      `json:"key_size,omitempty"`
	Curve          *string   `json:"curve,omitempty"`
	Fingerprint    string    `json:"fingerprint"`
	HSMSlot        int       `json:"hsm_slot"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	Status         string    `json:"status"` // 'pending', 'active', 'revoked'
	CreatedByID    string    `json:"created_by_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

/* SigningConfig represents a code-signing configuration bound to a key */
type SigningConfig struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	KeyID              string    `json:"key_id"`
	HashAlgorithm      string    `json:"hash_algorithm"` // 'sha256', 'sha384', 'sha512'
	TimestampAuthority *string   `json:"timestamp_authority,omitempty"`
	IsEnabled          bool      `json:"is_enabled"`
	OrganizationID     *string   `json:"organization_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

/* Project represents a software project that consumes a signing configuration */
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	OrganizationID  *string   `json:"organization_id,omitempty"`
	SigningConfigID *string   `json:"signing_config_id,omitempty"`
	Status          string    `json:"status"` // 'active', 'archived'
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

/* AuditLog represents an audit log entry */
type AuditLog struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"user_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *string                `json:"entity_id,omitempty"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	IPAddress  *string                `json:"ip_address,omitempty"`
	UserAgent  *string                `json:"user_agent,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
