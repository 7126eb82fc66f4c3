package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	authoidc "github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth/oidc"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
)

const loginAttemptTTL = 10 * time.Minute

/* OIDCHandlers handles OIDC login endpoints */
type OIDCHandlers struct {
	provider *authoidc.Provider
	queries  *db.Queries
	auditor  audit.Sink
	logger   *logging.Logger

	mu       sync.Mutex
	attempts map[string]*authoidc.LoginAttempt // keyed by state
}

/* NewOIDCHandlers creates new OIDC handlers */
func NewOIDCHandlers(provider *authoidc.Provider, queries *db.Queries, auditor audit.Sink, logger *logging.Logger) *OIDCHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	return &OIDCHandlers{
		provider: provider,
		queries:  queries,
		auditor:  auditor,
		logger:   logger,
		attempts: make(map[string]*authoidc.LoginAttempt),
	}
}

/* Start begins an OIDC login and returns the authorization URL */
func (h *OIDCHandlers) Start(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteError(w, http.StatusServiceUnavailable, fmt.Errorf("OIDC is not configured"), nil)
		return
	}

	attempt, err := authoidc.NewLoginAttempt(loginAttemptTTL)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to start login"), nil)
		return
	}

	authURL, err := h.provider.AuthCodeURL(attempt.State, attempt.Nonce, attempt.CodeVerifier)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to build authorization URL"), nil)
		return
	}

	h.mu.Lock()
	h.pruneLocked()
	h.attempts[attempt.State] = attempt
	h.mu.Unlock()

	WriteSuccess(w, map[string]string{
		"authorization_url": authURL,
		"state":             attempt.State,
	}, http.StatusOK)
}

/* Callback completes an OIDC login and issues a first-party token */
func (h *OIDCHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteError(w, http.StatusServiceUnavailable, fmt.Errorf("OIDC is not configured"), nil)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("state and code are required"), nil)
		return
	}

	h.mu.Lock()
	attempt, ok := h.attempts[state]
	delete(h.attempts, state)
	h.mu.Unlock()

	if !ok || time.Now().After(attempt.ExpiresAt) {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("unknown or expired login attempt"), nil)
		return
	}

	token, err := h.provider.ExchangeCode(r.Context(), code, attempt.CodeVerifier)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("code exchange failed"), nil)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("no id_token in response"), nil)
		return
	}

	idToken, rawClaims, err := h.provider.VerifyIDToken(r.Context(), rawIDToken)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("id token verification failed"), nil)
		return
	}
	if idToken.Nonce != attempt.Nonce {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("nonce mismatch"), nil)
		return
	}

	claims := authoidc.ExtractClaims(rawClaims)
	if claims.Email == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("identity provider returned no email"), nil)
		return
	}

	user, err := h.upsertUser(r, claims)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	jwtToken, err := auth.GenerateToken(user.ID, user.Email, user.Name, user.Role, user.OrganizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to generate token"), nil)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    user.ID,
		Action:     "auth.oidc_login",
		EntityType: "user",
		EntityID:   &user.ID,
	})

	WriteSuccess(w, AuthResponse{
		Token:          jwtToken,
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, http.StatusOK)
}

/* upsertUser finds the user by identity provider subject or email, creating
   a developer account on first login */
func (h *OIDCHandlers) upsertUser(r *http.Request, claims *authoidc.Claims) (*db.User, error) {
	if user, err := h.queries.GetUserByAzureOID(r.Context(), claims.Subject); err == nil {
		return user, nil
	}

	if user, err := h.queries.GetUserByEmail(r.Context(), claims.Email); err == nil {
		// Link the identity provider subject on first OIDC login
		user.AzureADOID = &claims.Subject
		if err := h.queries.UpdateUser(r.Context(), user); err != nil {
			h.logger.Warn("Failed to link OIDC subject", map[string]interface{}{
				"user_id": user.ID,
			})
		}
		return user, nil
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	user := &db.User{
		Email:      claims.Email,
		Name:       name,
		Role:       auth.RoleDeveloper,
		AzureADOID: &claims.Subject,
		Status:     "active",
	}
	if err := h.queries.CreateUser(r.Context(), user); err != nil {
		return nil, fmt.Errorf("failed to create user")
	}
	return user, nil
}

func (h *OIDCHandlers) pruneLocked() {
	now := time.Now()
	for state, attempt := range h.attempts {
		if now.After(attempt.ExpiresAt) {
			delete(h.attempts, state)
		}
	}
}
