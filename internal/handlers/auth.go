package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
)

// AuthHandlers handles authentication requests
type AuthHandlers struct {
	queries *db.Queries
	auditor audit.Sink
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(queries *db.Queries, auditor audit.Sink) *AuthHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	return &AuthHandlers{queries: queries, auditor: auditor}
}

// RegisterRequest is the request to register a new user
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the request to login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the response for auth operations
type AuthResponse struct {
	Token          string  `json:"token"`
	UserID         string  `json:"user_id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// Register registers a new user
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("email and password are required"), nil)
		return
	}
	if len(req.Password) < 8 {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("password must be at least 8 characters"), nil)
		return
	}
	if req.Name == "" {
		req.Name = req.Email
	}

	// Check if user already exists
	if _, err := h.queries.GetUserByEmail(r.Context(), req.Email); err == nil {
		WriteError(w, http.StatusConflict, fmt.Errorf("email already registered"), nil)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to hash password"), nil)
		return
	}

	// First registered user becomes the platform administrator
	role := auth.RoleDeveloper
	if count, err := h.queries.CountUsers(r.Context()); err == nil && count == 0 {
		role = auth.RoleSuperAdmin
	}

	user := &db.User{
		Email:          req.Email,
		Name:           req.Name,
		Role:           role,
		HashedPassword: string(passwordHash),
		Status:         "active",
	}

	if err := h.queries.CreateUser(r.Context(), user); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create user"), nil)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.Name, user.Role, user.OrganizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to generate token"), nil)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    user.ID,
		Action:     "auth.register",
		EntityType: "user",
		EntityID:   &user.ID,
		Changes:    map[string]interface{}{"email": user.Email},
	})

	WriteSuccess(w, AuthResponse{
		Token:          token,
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, http.StatusCreated)
}

// Login authenticates a user with email and password
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("email and password are required"), nil)
		return
	}

	user, err := h.queries.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("invalid credentials"), nil)
		return
	}

	if user.Status != "active" {
		WriteError(w, http.StatusForbidden, fmt.Errorf("account is %s", user.Status), nil)
		return
	}

	if user.HashedPassword == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("invalid credentials"), nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("invalid credentials"), nil)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.Name, user.Role, user.OrganizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to generate token"), nil)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    user.ID,
		Action:     "auth.login",
		EntityType: "user",
		EntityID:   &user.ID,
	})

	WriteSuccess(w, AuthResponse{
		Token:          token,
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, http.StatusOK)
}

// GetCurrentUser returns the authenticated user's profile
func (h *AuthHandlers) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	user, err := h.queries.GetUserByID(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Errorf("user not found"), nil)
		return
	}

	WriteSuccess(w, user, http.StatusOK)
}

// ChangePassword updates the authenticated user's password
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if len(req.NewPassword) < 8 {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("password must be at least 8 characters"), nil)
		return
	}

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	user, err := h.queries.GetUserByID(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Errorf("user not found"), nil)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.CurrentPassword)); err != nil {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("current password is incorrect"), nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to hash password"), nil)
		return
	}

	if err := h.queries.UpdateUserPassword(r.Context(), userID, string(hash)); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to update password"), nil)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "auth.password_change",
		EntityType: "user",
		EntityID:   &userID,
	})

	WriteSuccess(w, map[string]string{"message": "Password updated"}, http.StatusOK)
}
