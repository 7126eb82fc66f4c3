package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
)

/* UserHandlers handles user management endpoints */
type UserHandlers struct {
	queries  *db.Queries
	auditor  audit.Sink
	notifier notify.Sink
}

/* NewUserHandlers creates new user handlers */
func NewUserHandlers(queries *db.Queries, auditor audit.Sink, notifier notify.Sink) *UserHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &UserHandlers{
		queries:  queries,
		auditor:  auditor,
		notifier: notifier,
	}
}

/* InviteUserRequest represents a request to invite a user */
type InviteUserRequest struct {
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organization_id,omitempty"`
	Password       string  `json:"password,omitempty"`
}

/* UpdateUserRequest represents a request to update a user */
type UpdateUserRequest struct {
	Name           string  `json:"name,omitempty"`
	Role           string  `json:"role,omitempty"`
	Status         string  `json:"status,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

func validRole(role string) bool {
	switch role {
	case auth.RoleSuperAdmin, auth.RoleOrgAdmin, auth.RoleApprover,
		auth.RoleDeveloper, auth.RoleAuditor:
		return true
	}
	return false
}

/* ListUsers lists users, optionally scoped to an organization */
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	var organizationID *string
	if org := r.URL.Query().Get("organization_id"); org != "" {
		organizationID = &org
	}

	users, err := h.queries.ListUsers(r.Context(), organizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"users": users,
		"count": len(users),
	}, http.StatusOK)
}

/* InviteUser creates a new user account */
func (h *UserHandlers) InviteUser(w http.ResponseWriter, r *http.Request) {
	var req InviteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Email == "" || req.Name == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("email and name are required"), nil)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleDeveloper
	}
	if !validRole(req.Role) {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid role %q", req.Role), nil)
		return
	}

	if _, err := h.queries.GetUserByEmail(r.Context(), req.Email); err == nil {
		WriteError(w, http.StatusConflict, fmt.Errorf("user with email %s already exists", req.Email), nil)
		return
	}

	user := &db.User{
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		OrganizationID: req.OrganizationID,
		Status:         "invited",
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to hash password"), nil)
			return
		}
		user.HashedPassword = string(hash)
		user.Status = "active"
	}

	if err := h.queries.CreateUser(r.Context(), user); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create user"), nil)
		return
	}

	actorID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    actorID,
		Action:     "user.invite",
		EntityType: "user",
		EntityID:   &user.ID,
		Changes:    map[string]interface{}{"email": user.Email, "role": user.Role},
	})
	h.notifier.Publish(notify.NewEvent(notify.EventUserInvited,
		"User invited", user.Email, "user", user.ID, nil))

	WriteSuccess(w, user, http.StatusCreated)
}

/* GetUser returns a single user */
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := h.queries.GetUserByID(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("user not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, user, http.StatusOK)
}

/* UpdateUser updates a user's profile, role, or status */
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	user, err := h.queries.GetUserByID(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("user not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	changes := map[string]interface{}{}
	roleChanged := false

	if req.Name != "" {
		user.Name = req.Name
		changes["name"] = req.Name
	}
	if req.Role != "" && req.Role != user.Role {
		if !validRole(req.Role) {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid role %q", req.Role), nil)
			return
		}
		changes["role"] = map[string]string{"from": user.Role, "to": req.Role}
		user.Role = req.Role
		roleChanged = true
	}
	if req.Status != "" {
		user.Status = req.Status
		changes["status"] = req.Status
	}
	if req.OrganizationID != nil {
		user.OrganizationID = req.OrganizationID
		changes["organization_id"] = *req.OrganizationID
	}

	if err := h.queries.UpdateUser(r.Context(), user); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to update user"), nil)
		return
	}

	actorID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    actorID,
		Action:     "user.update",
		EntityType: "user",
		EntityID:   &user.ID,
		Changes:    changes,
	})

	if roleChanged {
		ev := notify.NewEvent(notify.EventUserRoleChanged,
			"Role changed", user.Email, "user", user.ID,
			map[string]interface{}{"role": user.Role})
		ev.UserID = user.ID
		h.notifier.Publish(ev)
	}

	WriteSuccess(w, user, http.StatusOK)
}
