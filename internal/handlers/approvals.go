package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

/* ApprovalHandlers handles approval request endpoints */
type ApprovalHandlers struct {
	engine *quorum.Engine
}

/* NewApprovalHandlers creates new approval handlers */
func NewApprovalHandlers(engine *quorum.Engine) *ApprovalHandlers {
	return &ApprovalHandlers{engine: engine}
}

/* CreateApprovalRequest represents a request to open an approval workflow */
type CreateApprovalRequest struct {
	ApprovalType      string  `json:"approval_type"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	EntityType        string  `json:"entity_type"`
	EntityID          string  `json:"entity_id"`
	EntityData        string  `json:"entity_data,omitempty"`
	RequiredApprovals int     `json:"required_approvals,omitempty"`
	TotalApprovers    int     `json:"total_approvers,omitempty"`
	OrganizationID    *string `json:"organization_id,omitempty"`
}

/* VoteRequest represents a vote on an approval request */
type VoteRequest struct {
	Vote    string `json:"vote"`
	Comment string `json:"comment,omitempty"`
}

/* CreateApproval opens a new approval request */
func (h *ApprovalHandlers) CreateApproval(w http.ResponseWriter, r *http.Request) {
	var req CreateApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if !quorum.ApprovalType(req.ApprovalType).Valid() {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid approval type %q", req.ApprovalType), nil)
		return
	}

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	created, err := h.engine.CreateRequest(r.Context(), quorum.CreateRequestInput{
		ApprovalType:      quorum.ApprovalType(req.ApprovalType),
		Title:             req.Title,
		Description:       req.Description,
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		EntityData:        req.EntityData,
		RequiredApprovals: req.RequiredApprovals,
		TotalApprovers:    req.TotalApprovers,
		OrganizationID:    req.OrganizationID,
		CreatedByID:       userID,
	})
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, created, http.StatusCreated)
}

/* ListApprovals lists approval requests with optional filters */
func (h *ApprovalHandlers) ListApprovals(w http.ResponseWriter, r *http.Request) {
	filter := quorum.RequestFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := quorum.ApprovalStatus(s)
		if !status.Valid() {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid status %q", s), nil)
			return
		}
		filter.Status = &status
	}
	if org := r.URL.Query().Get("organization_id"); org != "" {
		filter.OrganizationID = &org
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	requests, err := h.engine.ListRequests(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	}, http.StatusOK)
}

/* GetApproval returns a single approval request with its votes */
func (h *ApprovalHandlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	req, err := h.engine.GetRequest(r.Context(), vars["id"])
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, req, http.StatusOK)
}

/* Vote records an approve or reject decision on a pending request */
func (h *ApprovalHandlers) Vote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	updated, err := h.engine.Vote(r.Context(), vars["id"], userID, quorum.VoteDecision(req.Vote), req.Comment)
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	WriteSuccess(w, updated, http.StatusOK)
}
