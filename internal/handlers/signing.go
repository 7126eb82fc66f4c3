package handlers

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/hsm"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/validation"
)

/* SigningHandlers handles signing config and code signing endpoints */
type SigningHandlers struct {
	queries  *db.Queries
	auditor  audit.Sink
	notifier notify.Sink
}

/* NewSigningHandlers creates new signing handlers */
func NewSigningHandlers(queries *db.Queries, auditor audit.Sink, notifier notify.Sink) *SigningHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &SigningHandlers{
		queries:  queries,
		auditor:  auditor,
		notifier: notifier,
	}
}

/* SigningConfigRequest represents a request to create or update a config */
type SigningConfigRequest struct {
	Name               string  `json:"name"`
	KeyID              string  `json:"key_id"`
	HashAlgorithm      string  `json:"hash_algorithm,omitempty"`
	TimestampAuthority *string `json:"timestamp_authority,omitempty"`
	IsEnabled          *bool   `json:"is_enabled,omitempty"`
	OrganizationID     *string `json:"organization_id,omitempty"`
}

/* SignRequest represents a request to sign a payload */
type SignRequest struct {
	ConfigID string `json:"config_id"`
	Data     string `json:"data"` // base64-encoded payload
}

/* VerifyRequest represents a request to verify a signature */
type VerifyRequest struct {
	KeyID     string `json:"key_id"`
	Data      string `json:"data"` // base64-encoded payload
	Signature string `json:"signature"`
}

/* CreateSigningConfig creates a signing configuration */
func (h *SigningHandlers) CreateSigningConfig(w http.ResponseWriter, r *http.Request) {
	var req SigningConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Name == "" || req.KeyID == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("name and key_id are required"), nil)
		return
	}
	if req.HashAlgorithm == "" {
		req.HashAlgorithm = "SHA-256"
	}
	if req.TimestampAuthority != nil && !validation.ValidateURL(*req.TimestampAuthority) {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("timestamp_authority must be an http(s) URL"), nil)
		return
	}

	key, err := h.queries.GetKey(r.Context(), req.KeyID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("key not found"), nil)
		return
	}
	if key.Status != "active" {
		WriteError(w, http.StatusConflict, fmt.Errorf("key is %s, not active", key.Status), nil)
		return
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	cfg := &db.SigningConfig{
		Name:               req.Name,
		KeyID:              req.KeyID,
		HashAlgorithm:      req.HashAlgorithm,
		TimestampAuthority: req.TimestampAuthority,
		IsEnabled:          enabled,
		OrganizationID:     req.OrganizationID,
	}

	if err := h.queries.CreateSigningConfig(r.Context(), cfg); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create signing config"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "signing_config.create",
		EntityType: "signing_config",
		EntityID:   &cfg.ID,
		Changes:    map[string]interface{}{"name": cfg.Name, "key_id": cfg.KeyID},
	})

	WriteSuccess(w, cfg, http.StatusCreated)
}

/* ListSigningConfigs lists signing configurations */
func (h *SigningHandlers) ListSigningConfigs(w http.ResponseWriter, r *http.Request) {
	var organizationID *string
	if org := r.URL.Query().Get("organization_id"); org != "" {
		organizationID = &org
	}

	configs, err := h.queries.ListSigningConfigs(r.Context(), organizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"configs": configs,
		"count":   len(configs),
	}, http.StatusOK)
}

/* GetSigningConfig returns a single signing configuration */
func (h *SigningHandlers) GetSigningConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cfg, err := h.queries.GetSigningConfig(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("signing config not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, cfg, http.StatusOK)
}

/* UpdateSigningConfig updates a signing configuration */
func (h *SigningHandlers) UpdateSigningConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req SigningConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	cfg, err := h.queries.GetSigningConfig(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("signing config not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	if req.Name != "" {
		cfg.Name = req.Name
	}
	if req.HashAlgorithm != "" {
		cfg.HashAlgorithm = req.HashAlgorithm
	}
	if req.TimestampAuthority != nil {
		cfg.TimestampAuthority = req.TimestampAuthority
	}
	if req.IsEnabled != nil {
		cfg.IsEnabled = *req.IsEnabled
	}

	if err := h.queries.UpdateSigningConfig(r.Context(), cfg); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to update signing config"), nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "signing_config.update",
		EntityType: "signing_config",
		EntityID:   &cfg.ID,
	})

	WriteSuccess(w, cfg, http.StatusOK)
}

/* DeleteSigningConfig deletes a signing configuration */
func (h *SigningHandlers) DeleteSigningConfig(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.queries.DeleteSigningConfig(r.Context(), vars["id"]); err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	id := vars["id"]
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "signing_config.delete",
		EntityType: "signing_config",
		EntityID:   &id,
	})

	WriteSuccess(w, map[string]string{"message": "Signing config deleted"}, http.StatusOK)
}

/* Sign signs a base64 payload with the key behind an enabled config */
func (h *SigningHandlers) Sign(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.ConfigID == "" || req.Data == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("config_id and data are required"), nil)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("data must be base64-encoded"), nil)
		return
	}

	cfg, err := h.queries.GetSigningConfig(r.Context(), req.ConfigID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Errorf("signing config not found"), nil)
		return
	}
	if !cfg.IsEnabled {
		WriteError(w, http.StatusConflict, fmt.Errorf("signing config is disabled"), nil)
		return
	}

	key, err := h.queries.GetKey(r.Context(), cfg.KeyID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("signing key not found"), nil)
		return
	}
	if key.Status != "active" {
		h.notifier.Publish(notify.NewEvent(notify.EventSigningFailed,
			"Signing failed", key.Name, "pkcs11_key", key.ID,
			map[string]interface{}{"reason": "key not active"}))
		WriteError(w, http.StatusConflict, fmt.Errorf("signing key is %s, not active", key.Status), nil)
		return
	}

	signature := hsm.Sign(data, key.Fingerprint)

	userID, _ := auth.GetUserIDFromContext(r.Context())
	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "signing.sign",
		EntityType: "signing_config",
		EntityID:   &cfg.ID,
		Changes:    map[string]interface{}{"key_id": key.ID, "bytes": len(data)},
	})
	h.notifier.Publish(notify.NewEvent(notify.EventSigningCompleted,
		"Payload signed", cfg.Name, "signing_config", cfg.ID, nil))

	WriteSuccess(w, map[string]interface{}{
		"signature":      signature,
		"key_id":         key.ID,
		"fingerprint":    key.Fingerprint,
		"hash_algorithm": cfg.HashAlgorithm,
	}, http.StatusOK)
}

/* VerifySignature verifies a signature produced by Sign */
func (h *SigningHandlers) VerifySignature(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.KeyID == "" || req.Data == "" || req.Signature == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("key_id, data and signature are required"), nil)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("data must be base64-encoded"), nil)
		return
	}

	key, err := h.queries.GetKey(r.Context(), req.KeyID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Errorf("key not found"), nil)
		return
	}

	valid := hsm.Verify(data, key.Fingerprint, req.Signature)

	WriteSuccess(w, map[string]interface{}{
		"valid":  valid,
		"key_id": key.ID,
	}, http.StatusOK)
}
