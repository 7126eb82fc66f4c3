package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth/oidc"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/ceremony"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/config"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/handlers"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/initialization"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/keys"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/middleware"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum/memory"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum/postgres"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	logger.Info("Starting KT Secure CodeSign API server", nil)

	// Validate JWT secret if JWT mode is enabled
	if cfg.Auth.Mode == "jwt" || cfg.Auth.Mode == "hybrid" {
		if cfg.Auth.JWTSecret == "" {
			logger.Error("JWT_SECRET is required when using JWT authentication", fmt.Errorf("JWT_SECRET environment variable not set"), nil)
			os.Exit(1)
		}
	}

	// Notifications are fanned out to websocket subscribers regardless of
	// storage backend
	hub := notify.NewHub()

	var queries *db.Queries
	var store quorum.Store
	var auditor audit.Sink = audit.NopSink{}

	switch cfg.Storage.Mode {
	case "memory":
		// In-memory mode runs the approval workflow without Postgres.
		// Entity endpoints that need the database are unavailable.
		logger.Warn("Running with in-memory storage, state is not persisted", nil)
		store = memory.NewStore()

	default:
		database, err := sql.Open("pgx", cfg.Database.DSN())
		if err != nil {
			logger.Error("Failed to open database", err, nil)
			os.Exit(1)
		}
		defer database.Close()

		// Configure connection pool
		database.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		database.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		database.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := database.PingContext(pingCtx); err != nil {
			pingCancel()
			logger.Error("Failed to ping database", err, nil)
			os.Exit(1)
		}
		pingCancel()

		logger.Info("Connected to database", map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})

		queries = db.NewQueries(database)
		store = postgres.NewStore(database)
		auditor = audit.NewRecorder(queries, logger)
	}

	// Assemble the approval engine
	engineOpts := []quorum.Option{
		quorum.WithNotifier(hub),
		quorum.WithAuditSink(auditor),
		quorum.WithLogger(logger.Component("quorum")),
		quorum.WithDefaults(quorum.PolicyDefaults{
			RequiredApprovals: cfg.Quorum.RequiredApprovals,
			TotalApprovers:    cfg.Quorum.TotalApprovers,
			ExpiryHours:       cfg.Quorum.ExpiryHours,
		}),
	}
	if queries != nil {
		engineOpts = append(engineOpts,
			quorum.WithNameResolver(queries),
			// Completed key_generation/key_revocation approvals flip the
			// referenced key's status; the engine stays decision-only.
			quorum.WithCompletionHandler(keys.NewActivator(queries, logger.Component("keys")).HandleCompletion),
		)
	}
	engine := quorum.NewEngine(store, engineOpts...)

	// Bootstrap application (schema, admin user, policy seed, health checks)
	if queries != nil {
		initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
		bootstrap := initialization.NewBootstrap(queries, engine, cfg.Seed, logger)
		if err := bootstrap.Initialize(initCtx); err != nil {
			initCancel()
			logger.Error("Failed to bootstrap application", err, nil)
			os.Exit(1)
		}
		initCancel()
	}

	// Initialize OIDC provider if configured
	var oidcProvider *oidc.Provider
	if cfg.Auth.Mode == "oidc" || cfg.Auth.Mode == "hybrid" {
		if cfg.Auth.OIDC.IssuerURL != "" {
			oidcCtx, oidcCancel := context.WithTimeout(context.Background(), 15*time.Second)
			provider, err := oidc.NewProvider(
				oidcCtx,
				cfg.Auth.OIDC.IssuerURL,
				cfg.Auth.OIDC.ClientID,
				cfg.Auth.OIDC.ClientSecret,
				cfg.Auth.OIDC.RedirectURL,
				cfg.Auth.OIDC.Scopes,
			)
			oidcCancel()
			if err != nil {
				// Continue without OIDC, local auth still works
				logger.Error("Failed to initialize OIDC provider", err, nil)
			} else {
				oidcProvider = provider
				logger.Info("OIDC provider initialized", map[string]interface{}{
					"issuer": cfg.Auth.OIDC.IssuerURL,
				})
			}
		}
	}

	// Rate limiter for authenticated API routes
	rateLimiter := middleware.NewRateLimiter(1000, 1*time.Minute)

	router := handlers.NewRouter(handlers.RouterDeps{
		Queries:      queries,
		Engine:       engine,
		Hub:          hub,
		Auditor:      auditor,
		Logger:       logger,
		OIDCProvider: oidcProvider,
		RateLimiter:  rateLimiter,
		Ceremonies:   ceremony.NewManager(),
	})

	// Expiry sweeper marks overdue pending requests in the background
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper := quorum.NewSweeper(engine, cfg.Quorum.SweepInterval, logger.Component("sweeper"))
	go sweeper.Run(sweepCtx)

	// CORS handler wrapper
	//
	// Important: we wrap the router at the HTTP handler level (instead of router.Use),
	// so CORS headers and OPTIONS preflight responses work even when gorilla/mux would
	// otherwise return 404 for method-mismatches (e.g. OPTIONS on a GET-only route).
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades need direct access to the underlying connection
		// (Hijacker interface) so we bypass the CORS wrapper for them
		if r.Header.Get("Upgrade") == "websocket" {
			router.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		allowed := false
		allowAll := false

		for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowAll = true
				allowed = true
				break
			} else if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			// If "*" is allowed, use the actual origin (required when credentials are allowed)
			if allowAll && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}

		// Only set credentials if we're using a specific origin (not "*")
		if allowed && (!allowAll || origin != "") {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", joinStrings(cfg.CORS.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", joinStrings(cfg.CORS.AllowedHeaders, ", "))

		// Preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		router.ServeHTTP(w, r)
	})

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", map[string]interface{}{
			"address": addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server", nil)

	// Stop the sweeper before draining connections
	sweepCancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err, nil)
	}

	logger.Info("Server stopped", nil)
}

func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += sep + strs[i]
	}
	return result
}
