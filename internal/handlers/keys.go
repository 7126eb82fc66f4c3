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
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/hsm"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/notify"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

/* KeyHandlers handles signing key endpoints */
type KeyHandlers struct {
	queries  *db.Queries
	engine   *quorum.Engine
	auditor  audit.Sink
	notifier notify.Sink
}

/* NewKeyHandlers creates new key handlers */
func NewKeyHandlers(queries *db.Queries, engine *quorum.Engine, auditor audit.Sink, notifier notify.Sink) *KeyHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &KeyHandlers{
		queries:  queries,
		engine:   engine,
		auditor:  auditor,
		notifier: notifier,
	}
}

/* GenerateKeyRequest represents a request to generate a signing key */
type GenerateKeyRequest struct {
	Name           string  `json:"name"`
	Algorithm      string  `json:"algorithm"`
	KeySize        *int    `json:"key_size,omitempty"`
	Curve          *string `json:"curve,omitempty"`
	HSMSlot        int     `json:"hsm_slot"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

var supportedAlgorithms = map[string]bool{
	"RSA":   true,
	"ECDSA": true,
	"EdDSA": true,
}

/* ListKeys lists signing keys, optionally scoped to an organization */
func (h *KeyHandlers) ListKeys(w http.ResponseWriter, r *http.Request) {
	var organizationID *string
	if org := r.URL.Query().Get("organization_id"); org != "" {
		organizationID = &org
	}

	keys, err := h.queries.ListKeys(r.Context(), organizationID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	}, http.StatusOK)
}

/* GenerateKey creates a key record and opens the quorum approval that gates
   its activation */
func (h *KeyHandlers) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req GenerateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("key name is required"), nil)
		return
	}
	if !supportedAlgorithms[req.Algorithm] {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("unsupported algorithm %q", req.Algorithm), nil)
		return
	}

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	fingerprint, err := hsm.GenerateFingerprint()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to generate key material"), nil)
		return
	}

	key := &db.Pkcs11Key{
		Name:           req.Name,
		Algorithm:      req.Algorithm,
		KeySize:        req.KeySize,
		Curve:          req.Curve,
		Fingerprint:    fingerprint,
		HSMSlot:        req.HSMSlot,
		OrganizationID: req.OrganizationID,
		Status:         "pending",
		CreatedByID:    userID,
	}

	if err := h.queries.CreateKey(r.Context(), key); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to create key"), nil)
		return
	}

	entityData, _ := json.Marshal(map[string]interface{}{
		"name":        key.Name,
		"algorithm":   key.Algorithm,
		"fingerprint": key.Fingerprint,
		"hsm_slot":    key.HSMSlot,
	})

	approval, err := h.engine.CreateRequest(r.Context(), quorum.CreateRequestInput{
		ApprovalType:   quorum.TypeKeyGeneration,
		Title:          fmt.Sprintf("Generate signing key %q", key.Name),
		EntityType:     "pkcs11_key",
		EntityID:       key.ID,
		EntityData:     string(entityData),
		OrganizationID: req.OrganizationID,
		CreatedByID:    userID,
	})
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "key.generate",
		EntityType: "pkcs11_key",
		EntityID:   &key.ID,
		Changes:    map[string]interface{}{"name": key.Name, "algorithm": key.Algorithm},
	})
	h.notifier.Publish(notify.NewEvent(notify.EventKeyGenerated,
		"Key generation requested", key.Name, "pkcs11_key", key.ID,
		map[string]interface{}{"approval_request_id": approval.ID}))

	WriteSuccess(w, map[string]interface{}{
		"key":              key,
		"approval_request": approval,
	}, http.StatusCreated)
}

/* GetKey returns a single key */
func (h *KeyHandlers) GetKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	key, err := h.queries.GetKey(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("key not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	WriteSuccess(w, key, http.StatusOK)
}

/* RevokeKey opens the quorum approval that gates key revocation */
func (h *KeyHandlers) RevokeKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not authenticated"), nil)
		return
	}

	key, err := h.queries.GetKey(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, http.StatusNotFound, fmt.Errorf("key not found"), nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, err, nil)
		return
	}

	if key.Status == "revoked" {
		WriteError(w, http.StatusConflict, fmt.Errorf("key is already revoked"), nil)
		return
	}

	entityData, _ := json.Marshal(map[string]interface{}{
		"name":        key.Name,
		"fingerprint": key.Fingerprint,
		"reason":      req.Reason,
	})

	approval, err := h.engine.CreateRequest(r.Context(), quorum.CreateRequestInput{
		ApprovalType:   quorum.TypeKeyRevocation,
		Title:          fmt.Sprintf("Revoke signing key %q", key.Name),
		Description:    req.Reason,
		EntityType:     "pkcs11_key",
		EntityID:       key.ID,
		EntityData:     string(entityData),
		OrganizationID: key.OrganizationID,
		CreatedByID:    userID,
	})
	if err != nil {
		WriteQuorumError(w, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    userID,
		Action:     "key.revoke_requested",
		EntityType: "pkcs11_key",
		EntityID:   &key.ID,
		Changes:    map[string]interface{}{"reason": req.Reason},
	})

	WriteSuccess(w, map[string]interface{}{
		"key":              key,
		"approval_request": approval,
	}, http.StatusAccepted)
}
