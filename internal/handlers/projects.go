package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
)

/* ProjectHandlers handles project endpoints */
type ProjectHandlers struct {
	queries *db.Queries
	auditor audit.Sink
}

/* NewProjectHandlers creates new project handlers */
func NewProjectHandlers(queries *db.Queries, auditor audit.Sink) *ProjectHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	return &ProjectHandlers{queries: queries, auditor: auditor}
}

/* ProjectRequest represents a request to create or update a project */
type ProjectRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	OrganizationID  *string `json:"organization_id,omitempty"`
	SigningConfigID *string `json:"signing_config_id,omitempty"`
	Status          string  `json:"status,omitempty"`
}

/* CreateProject creates a new project */
func (h *ProjectHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("project name is required"), nil)
		return
	}

	if req.SigningConfigID != nil {
		if _, err := h.queries.GetSigningConfig(r.Context(), *req.SigningConfigID); err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("signing config not found"), nil)
			return
		}
	}

	project := &db.Project{
		Name:            req.Name,
		Description:     req.Description,
		OrganizationID:  req.OrganizationID,
		SigningConfigID: req.SigningConfigID,
	}

	if err := h.queries.CreateProject(r.Context(), project); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create project"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "project.create",
		EntityType: "project",
		EntityID:   &project.ID,
		Changes:    map[string]interface{}{"name": project.Name},
	})

	WriteSuccess(w, project, http.StatusCreated)
}

/* ListProjects lists projects, optionally scoped to an organization */
func (h *ProjectHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	var organizationID *string
	if org := r.URL.Query().Get("organization_id"); org != "" {
		organizationID = &org
	}

	projects, err := h.queries.ListProjects(r.Context(), organizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	}, http.StatusOK)
}

/* GetProject returns a single project */
func (h *ProjectHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	project, err := h.queries.GetProject(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("project not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, project, http.StatusOK)
}

/* UpdateProject updates a project */
func (h *ProjectHandlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	project, err := h.queries.GetProject(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("project not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Description != "" {
		project.Description = req.Description
	}
	if req.Status != "" {
		project.Status = req.Status
	}
	if req.SigningConfigID != nil {
		if _, err := h.queries.GetSigningConfig(r.Context(), *req.SigningConfigID); err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("signing config not found"), nil)
			return
		}
		project.SigningConfigID = req.SigningConfigID
	}

	if err := h.queries.UpdateProject(r.Context(), project); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to update project"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "project.update",
		EntityType: "project",
		EntityID:   &project.ID,
	})

	WriteSuccess(w, project, http.StatusOK)
}

/* DeleteProject deletes a project */
func (h *ProjectHandlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.queries.DeleteProject(r.Context(), vars["id"]); err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	id := vars["id"]
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "project.delete",
		EntityType: "project",
		EntityID:   &id,
	})

	WriteSuccess(w, map[string]string{"message": "Project deleted"}, http.StatusOK)
}
