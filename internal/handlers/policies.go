package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

/* PolicyHandlers handles quorum policy endpoints */
type PolicyHandlers struct {
	engine *quorum.Engine
}

/* NewPolicyHandlers creates new policy handlers */
func NewPolicyHandlers(engine *quorum.Engine) *PolicyHandlers {
	return &PolicyHandlers{engine: engine}
}

/* PolicyRequest represents a request to create or update a quorum policy */
type PolicyRequest struct {
	OrganizationID    *string `json:"organization_id,omitempty"`
	ApprovalType      string  `json:"approval_type"`
	RequiredApprovals int     `json:"required_approvals"`
	TotalApprovers    int     `json:"total_approvers"`
	ExpiryHours       int     `json:"expiry_hours"`
	IsEnabled         bool    `json:"is_enabled"`
}

/* CreatePolicy creates a new quorum policy */
func (h *PolicyHandlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())

	policy, err := h.engine.CreatePolicy(r.Context(), quorum.PolicyInput{
		OrganizationID:    req.OrganizationID,
		ApprovalType:      quorum.ApprovalType(req.ApprovalType),
		RequiredApprovals: req.RequiredApprovals,
		TotalApprovers:    req.TotalApprovers,
		ExpiryHours:       req.ExpiryHours,
		IsEnabled:         req.IsEnabled,
		ActorID:           userID,
	})
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, policy, http.StatusCreated)
}

/* ListPolicies lists quorum policies, optionally scoped to an organization */
func (h *PolicyHandlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	var organizationID *string
	if org := r.URL.Query().Get("organization_id"); org != "" {
		organizationID = &org
	}

	policies, err := h.engine.ListPolicies(r.Context(), organizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
	}, http.StatusOK)
}

/* GetPolicy returns a single quorum policy */
func (h *PolicyHandlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	policy, err := h.engine.GetPolicy(r.Context(), vars["id"])
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, policy, http.StatusOK)
}

/* UpdatePolicy updates an existing quorum policy */
func (h *PolicyHandlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())

	policy, err := h.engine.UpdatePolicy(r.Context(), vars["id"], quorum.PolicyInput{
		OrganizationID:    req.OrganizationID,
		ApprovalType:      quorum.ApprovalType(req.ApprovalType),
		RequiredApprovals: req.RequiredApprovals,
		TotalApprovers:    req.TotalApprovers,
		ExpiryHours:       req.ExpiryHours,
		IsEnabled:         req.IsEnabled,
		ActorID:           userID,
	})
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, policy, http.StatusOK)
}

/* DeletePolicy deletes a quorum policy */
func (h *PolicyHandlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	userID, _ := auth.GetUserIDFromContext(r.Context())

	if err := h.engine.DeletePolicy(r.Context(), vars["id"], userID); err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, map[string]string{"message": "Policy deleted"}, http.StatusOK)
}
