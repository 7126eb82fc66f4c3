package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/orgs"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/validation"
)

/* OrganizationHandlers handles organization-related endpoints */
type OrganizationHandlers struct {
	queries  *db.Queries
	auditor  audit.Sink
	notifier notify.Sink
}

/* NewOrganizationHandlers creates new organization handlers */
func NewOrganizationHandlers(queries *db.Queries, auditor audit.Sink, notifier notify.Sink) *OrganizationHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &OrganizationHandlers{
		queries:  queries,
		auditor:  auditor,
		notifier: notifier,
	}
}

/* CreateOrganizationRequest represents a request to create an organization */
type CreateOrganizationRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	AdminEmail  string  `json:"admin_email,omitempty"`
	HSMSlot     *int    `json:"hsm_slot,omitempty"`
}

/* UpdateOrganizationRequest represents a request to update an organization */
type UpdateOrganizationRequest struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	Status      string  `json:"status,omitempty"`
	AdminEmail  string  `json:"admin_email,omitempty"`
	HSMSlot     *int    `json:"hsm_slot,omitempty"`
}

/* slugify derives a url-safe slug from an organization name */
func slugify(name string) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	slug = strings.ReplaceAll(slug, "_", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return strings.Trim(slug, "-")
}

/* CreateOrganization creates a new organization */
func (h *OrganizationHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("organization name is required"), nil)
		return
	}

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	slug := slugify(req.Name)
	if slug == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("organization name must contain letters or digits"), nil)
		return
	}

	if _, err := h.queries.GetOrganizationBySlug(r.Context(), slug); err == nil {
		WriteError(w, http.StatusConflict, fmt.Errorf("organization %q already exists", slug), nil)
		return
	}

	if req.ParentID != nil {
		if _, err := h.queries.GetOrganization(r.Context(), *req.ParentID); err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("parent organization not found"), nil)
			return
		}
	}

	org := &db.Organization{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		AdminEmail:  req.AdminEmail,
		HSMSlot:     req.HSMSlot,
	}

	if err := h.queries.CreateOrganization(r.Context(), org); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create organization"), nil)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "organization.create",
		EntityType: "organization",
		EntityID:   &org.ID,
		Changes:    map[string]interface{}{"name": org.Name, "slug": org.Slug},
	})
	h.notifier.Publish(notify.NewEvent(notify.EventOrgCreated,
		"Organization created", org.Name, "organization", org.ID, nil))

	WriteSuccess(w, org, http.StatusCreated)
}

/* ListOrganizations lists all organizations */
func (h *OrganizationHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	organizations, err := h.queries.ListOrganizations(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"organizations": organizations,
		"count":         len(organizations),
	}, http.StatusOK)
}

/* GetOrganization returns a single organization */
func (h *OrganizationHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := validation.ValidateUUID(vars["id"], "organization id"); err != nil {
		WriteError(w, http.StatusBadRequest, err, nil)
		return
	}

	org, err := h.queries.GetOrganization(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("organization not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	// Counts are informational, a failure here does not fail the lookup
	userCount, _ := h.queries.CountUsersByOrganization(r.Context(), org.ID)
	keyCount, _ := h.queries.CountKeysByOrganization(r.Context(), org.ID)

	WriteSuccess(w, map[string]interface{}{
		"organization": org,
		"user_count":   userCount,
		"key_count":    keyCount,
	}, http.StatusOK)
}

/* UpdateOrganization updates an organization, rejecting reparenting that
   would create a cycle */
func (h *OrganizationHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req UpdateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	org, err := h.queries.GetOrganization(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("organization not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	changes := map[string]interface{}{}

	if req.ParentID != nil {
		all, err := h.queries.ListOrganizations(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err, nil)
			return
		}
		hierarchy := orgs.NewHierarchy(all)
		if hierarchy.WouldCreateCycle(org.ID, *req.ParentID) {
			WriteError(w, http.StatusBadRequest,
				fmt.Errorf("setting parent %s would create a cycle", *req.ParentID), nil)
			return
		}
		org.ParentID = req.ParentID
		changes["parent_id"] = *req.ParentID
	}
	if req.Name != "" {
		org.Name = req.Name
		changes["name"] = req.Name
	}
	if req.Description != "" {
		org.Description = req.Description
		changes["description"] = req.Description
	}
	if req.Status != "" {
		org.Status = req.Status
		changes["status"] = req.Status
	}
	if req.AdminEmail != "" {
		org.AdminEmail = req.AdminEmail
		changes["admin_email"] = req.AdminEmail
	}
	if req.HSMSlot != nil {
		org.HSMSlot = req.HSMSlot
		changes["hsm_slot"] = *req.HSMSlot
	}

	if err := h.queries.UpdateOrganization(r.Context(), org); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to update organization"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "organization.update",
		EntityType: "organization",
		EntityID:   &org.ID,
		Changes:    changes,
	})

	if req.Status == "approved" {
		h.notifier.Publish(notify.NewEvent(notify.EventOrgApproved,
			"Organization approved", org.Name, "organization", org.ID, nil))
	} else if req.Status == "rejected" {
		h.notifier.Publish(notify.NewEvent(notify.EventOrgRejected,
			"Organization rejected", org.Name, "organization", org.ID, nil))
	}

	WriteSuccess(w, org, http.StatusOK)
}

/* DeleteOrganization deletes an organization */
func (h *OrganizationHandlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	org, err := h.queries.GetOrganization(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("organization not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	all, err := h.queries.ListOrganizations(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}
	if children := orgs.NewHierarchy(all).Descendants(org.ID); len(children) > 0 {
		WriteError(w, http.StatusConflict,
			fmt.Errorf("organization has %d child organizations", len(children)), nil)
		return
	}

	if err := h.queries.DeleteOrganization(r.Context(), org.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to delete organization"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "organization.delete",
		EntityType: "organization",
		EntityID:   &org.ID,
		Changes:    map[string]interface{}{"name": org.Name},
	})

	WriteSuccess(w, map[string]string{"message": "Organization deleted"}, http.StatusOK)
}

/* ValidateHierarchy checks the whole organization tree for cycles and
   orphaned parents */
func (h *OrganizationHandlers) ValidateHierarchy(w http.ResponseWriter, r *http.Request) {
	all, err := h.queries.ListOrganizations(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	report := orgs.NewHierarchy(all).Validate()
	WriteSuccess(w, report, http.StatusOK)
}
