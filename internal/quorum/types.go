package quorum

import (
	"time"
)

// ApprovalType identifies the operation category a request gates.
type ApprovalType string

const (
	TypeKeyGeneration        ApprovalType = "key_generation"
	TypeKeyRevocation        ApprovalType = "key_revocation"
	TypeOrganizationApproval ApprovalType = "organization_approval"
	TypeUserRoleChange       ApprovalType = "user_role_change"
	TypeSigningConfigCreate  ApprovalType = "signing_config_create"
)

// Valid reports whether t is one of the known approval types.
func (t ApprovalType) Valid() bool {
	switch t {
	case TypeKeyGeneration, TypeKeyRevocation, TypeOrganizationApproval,
		TypeUserRoleChange, TypeSigningConfigCreate:
		return true
	}
	return false
}

// ApprovalStatus is the lifecycle state of a request.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
	StatusExpired  ApprovalStatus = "expired"
)

// Terminal reports whether no further transition is accepted from s.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// VoteDecision is a voter's approve/reject choice.
type VoteDecision string

const (
	VoteApprove VoteDecision = "approve"
	VoteReject  VoteDecision = "reject"
)

// Valid reports whether d is a known decision.
func (d VoteDecision) Valid() bool {
	return d == VoteApprove || d == VoteReject
}

// Request represents an M-of-N approval request.
type Request struct {
	ID           string       `json:"id"`
	ApprovalType ApprovalType `json:"approval_type"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`

	// Entity snapshot, captured at creation and immutable thereafter.
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EntityData string `json:"entity_data,omitempty"`

	RequiredApprovals int `json:"required_approvals"` // M
	TotalApprovers    int `json:"total_approvers"`    // N

	Status            ApprovalStatus `json:"status"`
	CurrentApprovals  int            `json:"current_approvals"`
	CurrentRejections int            `json:"current_rejections"`

	OrganizationID *string    `json:"organization_id,omitempty"`
	CreatedByID    string     `json:"created_by_id"`
	CreatedByName  string     `json:"created_by_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	Votes []Vote `json:"votes"`
}

// Expired reports whether the request's deadline has passed at now.
func (r *Request) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Vote is one voter's immutable decision on a request.
type Vote struct {
	ID        string       `json:"id"`
	RequestID string       `json:"request_id"`
	UserID    string       `json:"user_id"`
	UserName  string       `json:"user_name,omitempty"`
	Decision  VoteDecision `json:"vote"`
	Comment   string       `json:"comment,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Policy configures quorum parameters per (organization, approval type).
type Policy struct {
	ID                string       `json:"id"`
	OrganizationID    *string      `json:"organization_id,omitempty"` // nil means global default
	ApprovalType      ApprovalType `json:"approval_type"`
	RequiredApprovals int          `json:"required_approvals"` // M
	TotalApprovers    int          `json:"total_approvers"`    // N
	ExpiryHours       int          `json:"expiry_hours"`
	IsEnabled         bool         `json:"is_enabled"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// PolicyDefaults is the caller-supplied fallback for policy resolution.
type PolicyDefaults struct {
	RequiredApprovals int
	TotalApprovers    int
	ExpiryHours       int
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	Status         *ApprovalStatus
	OrganizationID *string
	Offset         int
	Limit          int
}
