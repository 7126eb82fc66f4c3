package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/ceremony"
	authoidc "github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth/oidc"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/metrics"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/middleware"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

/* RouterDeps carries the wired services the HTTP layer depends on */
type RouterDeps struct {
	Queries      *db.Queries
	Engine       *quorum.Engine
	Hub          *notify.Hub
	Auditor      audit.Sink
	Logger       *logging.Logger
	OIDCProvider *authoidc.Provider
	RateLimiter  *middleware.RateLimiter
	Ceremonies   *ceremony.Manager
}

/* NewRouter builds the full API route table */
func NewRouter(deps RouterDeps) *mux.Router {
	router := mux.NewRouter()

	/* Entity endpoints need the database. In memory storage mode they are
	   registered but answer 503 instead of dereferencing a nil Queries */
	dbBacked := func(h http.HandlerFunc) http.HandlerFunc {
		if deps.Queries != nil {
			return h
		}
		return func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusServiceUnavailable,
				fmt.Errorf("endpoint unavailable in memory storage mode"), nil)
		}
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	if deps.Logger != nil {
		router.Use(middleware.LoggingMiddleware(deps.Logger))
	}
	router.Use(middleware.RequestSizeMiddleware(10 * 1024 * 1024))

	/* Health check (no auth) */
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
		})
	}
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/api/v1/health", healthHandler).Methods("GET")

	/* Prometheus scrape endpoint (no auth) */
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	/* Auth routes */
	authHandlers := NewAuthHandlers(deps.Queries, deps.Auditor)
	authRouter := router.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", dbBacked(authHandlers.Register)).Methods("POST")
	authRouter.HandleFunc("/login", dbBacked(authHandlers.Login)).Methods("POST")

	oidcHandlers := NewOIDCHandlers(deps.OIDCProvider, deps.Queries, deps.Auditor, deps.Logger)
	authRouter.HandleFunc("/oidc/start", oidcHandlers.Start).Methods("GET", "POST")
	authRouter.HandleFunc("/oidc/callback", dbBacked(oidcHandlers.Callback)).Methods("GET")

	/* API routes (with auth) */
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(auth.JWTMiddleware())
	if deps.RateLimiter != nil {
		apiRouter.Use(middleware.RateLimitMiddleware(deps.RateLimiter))
	}

	apiRouter.HandleFunc("/auth/me", dbBacked(authHandlers.GetCurrentUser)).Methods("GET")
	apiRouter.HandleFunc("/auth/password", dbBacked(authHandlers.ChangePassword)).Methods("PUT")

	/* Approval workflow routes */
	approvalHandlers := NewApprovalHandlers(deps.Engine)
	apiRouter.HandleFunc("/approvals", approvalHandlers.ListApprovals).Methods("GET")
	apiRouter.HandleFunc("/approvals", approvalHandlers.CreateApproval).Methods("POST")
	apiRouter.HandleFunc("/approvals/{id}", approvalHandlers.GetApproval).Methods("GET")
	apiRouter.HandleFunc("/approvals/{id}/vote", approvalHandlers.Vote).Methods("POST")

	/* Quorum policy routes (admin only) */
	policyHandlers := NewPolicyHandlers(deps.Engine)
	policyRouter := apiRouter.PathPrefix("/policies").Subrouter()
	policyRouter.Use(auth.RequireRole(auth.RoleOrgAdmin))
	policyRouter.HandleFunc("", policyHandlers.ListPolicies).Methods("GET")
	policyRouter.HandleFunc("", policyHandlers.CreatePolicy).Methods("POST")
	policyRouter.HandleFunc("/{id}", policyHandlers.GetPolicy).Methods("GET")
	policyRouter.HandleFunc("/{id}", policyHandlers.UpdatePolicy).Methods("PUT")
	policyRouter.HandleFunc("/{id}", policyHandlers.DeletePolicy).Methods("DELETE")

	/* Organization routes */
	orgHandlers := NewOrganizationHandlers(deps.Queries, deps.Auditor, deps.Hub)
	apiRouter.HandleFunc("/organizations", dbBacked(orgHandlers.ListOrganizations)).Methods("GET")
	apiRouter.HandleFunc("/organizations", dbBacked(orgHandlers.CreateOrganization)).Methods("POST")
	apiRouter.HandleFunc("/organizations/hierarchy/validate", dbBacked(orgHandlers.ValidateHierarchy)).Methods("GET")
	apiRouter.HandleFunc("/organizations/{id}", dbBacked(orgHandlers.GetOrganization)).Methods("GET")
	apiRouter.HandleFunc("/organizations/{id}", dbBacked(orgHandlers.UpdateOrganization)).Methods("PUT")
	apiRouter.HandleFunc("/organizations/{id}", dbBacked(orgHandlers.DeleteOrganization)).Methods("DELETE")

	/* User routes */
	userHandlers := NewUserHandlers(deps.Queries, deps.Auditor, deps.Hub)
	apiRouter.HandleFunc("/users", dbBacked(userHandlers.ListUsers)).Methods("GET")
	apiRouter.HandleFunc("/users/{id}", dbBacked(userHandlers.GetUser)).Methods("GET")
	userAdminRouter := apiRouter.PathPrefix("/users").Subrouter()
	userAdminRouter.Use(auth.RequireRole(auth.RoleOrgAdmin))
	userAdminRouter.HandleFunc("", dbBacked(userHandlers.InviteUser)).Methods("POST")
	userAdminRouter.HandleFunc("/{id}", dbBacked(userHandlers.UpdateUser)).Methods("PUT")

	/* Key routes */
	keyHandlers := NewKeyHandlers(deps.Queries, deps.Engine, deps.Auditor, deps.Hub)
	apiRouter.HandleFunc("/keys", dbBacked(keyHandlers.ListKeys)).Methods("GET")
	apiRouter.HandleFunc("/keys", dbBacked(keyHandlers.GenerateKey)).Methods("POST")
	apiRouter.HandleFunc("/keys/{id}", dbBacked(keyHandlers.GetKey)).Methods("GET")
	apiRouter.HandleFunc("/keys/{id}/revoke", dbBacked(keyHandlers.RevokeKey)).Methods("POST")

	/* Key ceremony routes. The registry is in-memory, so these stay live
	   in memory storage mode */
	if deps.Ceremonies == nil {
		deps.Ceremonies = ceremony.NewManager()
	}
	ceremonyHandlers := NewCeremonyHandlers(deps.Ceremonies, deps.Queries, deps.Auditor)
	apiRouter.HandleFunc("/ceremonies", ceremonyHandlers.ListCeremonies).Methods("GET")
	apiRouter.HandleFunc("/ceremonies", ceremonyHandlers.CreateCeremony).Methods("POST")
	apiRouter.HandleFunc("/ceremonies/{id}", ceremonyHandlers.GetCeremony).Methods("GET")
	apiRouter.HandleFunc("/ceremonies/{id}/approve", ceremonyHandlers.ApproveCeremony).Methods("POST")
	apiRouter.HandleFunc("/ceremonies/{id}/generate", ceremonyHandlers.GenerateCeremonyKey).Methods("POST")

	/* Signing routes */
	signingHandlers := NewSigningHandlers(deps.Queries, deps.Auditor, deps.Hub)
	apiRouter.HandleFunc("/signing/configs", dbBacked(signingHandlers.ListSigningConfigs)).Methods("GET")
	apiRouter.HandleFunc("/signing/configs", dbBacked(signingHandlers.CreateSigningConfig)).Methods("POST")
	apiRouter.HandleFunc("/signing/configs/{id}", dbBacked(signingHandlers.GetSigningConfig)).Methods("GET")
	apiRouter.HandleFunc("/signing/configs/{id}", dbBacked(signingHandlers.UpdateSigningConfig)).Methods("PUT")
	apiRouter.HandleFunc("/signing/configs/{id}", dbBacked(signingHandlers.DeleteSigningConfig)).Methods("DELETE")
	apiRouter.HandleFunc("/signing/sign", dbBacked(signingHandlers.Sign)).Methods("POST")
	apiRouter.HandleFunc("/signing/verify", dbBacked(signingHandlers.VerifySignature)).Methods("POST")

	/* Project routes */
	projectHandlers := NewProjectHandlers(deps.Queries, deps.Auditor)
	apiRouter.HandleFunc("/projects", dbBacked(projectHandlers.ListProjects)).Methods("GET")
	apiRouter.HandleFunc("/projects", dbBacked(projectHandlers.CreateProject)).Methods("POST")
	apiRouter.HandleFunc("/projects/{id}", dbBacked(projectHandlers.GetProject)).Methods("GET")
	apiRouter.HandleFunc("/projects/{id}", dbBacked(projectHandlers.UpdateProject)).Methods("PUT")
	apiRouter.HandleFunc("/projects/{id}", dbBacked(projectHandlers.DeleteProject)).Methods("DELETE")

	/* Audit log routes */
	auditLogHandlers := NewAuditLogHandlers(deps.Queries)
	auditRouter := apiRouter.PathPrefix("/audit-logs").Subrouter()
	auditRouter.Use(auth.RequireRole(auth.RoleOrgAdmin, auth.RoleAuditor))
	auditRouter.HandleFunc("", dbBacked(auditLogHandlers.ListAuditLogs)).Methods("GET")
	auditRouter.HandleFunc("/{id}", dbBacked(auditLogHandlers.GetAuditLog)).Methods("GET")

	/* In-process stats */
	metricsHandlers := NewMetricsHandlers()
	apiRouter.HandleFunc("/stats", metricsHandlers.GetMetrics).Methods("GET")

	/* System metrics */
	systemMetricsHandlers := NewSystemMetricsHandlers(deps.Logger)
	apiRouter.HandleFunc("/system/metrics", systemMetricsHandlers.GetSystemMetrics).Methods("GET")

	/* WebSocket routes. JWT middleware accepts ?token= for these paths */
	wsHandlers := NewWebSocketHandlers(deps.Hub, deps.Logger)
	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(auth.JWTMiddleware())
	wsRouter.HandleFunc("/events", wsHandlers.Events).Methods("GET")
	wsRouter.HandleFunc("/status", wsHandlers.Status).Methods("GET")
	wsRouter.HandleFunc("/system-metrics", systemMetricsHandlers.SystemMetricsWebSocket).Methods("GET")

	return router
}
