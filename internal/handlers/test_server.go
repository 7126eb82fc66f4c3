package handlers

import (
	"net/http/httptest"
	"os"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum/memory"
)

/* SetupTestServer creates a test HTTP server backed by the in-memory store */
/* This is in the handlers package to avoid import cycles */
func SetupTestServer() (*httptest.Server, *quorum.Engine, *memory.Store) {
	/* Set JWT secret for testing */
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")

	store := memory.NewStore()
	hub := notify.NewHub()
	engine := quorum.NewEngine(store,
		quorum.WithNotifier(hub),
		quorum.WithAuditSink(audit.NopSink{}),
	)

	router := NewRouter(RouterDeps{
		Engine:  engine,
		Hub:     hub,
		Auditor: audit.NopSink{},
		Logger:  logging.NewLogger("error", "text", "stderr"),
	})

	return httptest.NewServer(router), engine, store
}
