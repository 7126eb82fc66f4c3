package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
)

/* AuditLogHandlers handles audit log query endpoints */
type AuditLogHandlers struct {
	queries *db.Queries
}

/* NewAuditLogHandlers creates new audit log handlers */
func NewAuditLogHandlers(queries *db.Queries) *AuditLogHandlers {
	return &AuditLogHandlers{queries: queries}
}

/* ListAuditLogs lists audit log entries, newest first */
func (h *AuditLogHandlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter := db.AuditLogFilter{}

	q := r.URL.Query()
	if v := q.Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := q.Get("action"); v != "" {
		filter.Action = &v
	}
	if v := q.Get("entity_type"); v != "" {
		filter.EntityType = &v
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	logs, err := h.queries.ListAuditLogs(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	}, http.StatusOK)
}

/* GetAuditLog returns a single audit log entry */
func (h *AuditLogHandlers) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	log, err := h.queries.GetAuditLog(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("audit log not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, log, http.StatusOK)
}
