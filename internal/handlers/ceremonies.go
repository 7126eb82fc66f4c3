package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/audit"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/ceremony"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/db"
)

/* CeremonyHandlers handles witnessed key generation endpoints */
type CeremonyHandlers struct {
	manager *ceremony.Manager
	queries *db.Queries
	auditor audit.Sink
}

/* NewCeremonyHandlers creates new ceremony handlers. Queries may be nil;
   witness display names are then left unresolved */
func NewCeremonyHandlers(manager *ceremony.Manager, queries *db.Queries, auditor audit.Sink) *CeremonyHandlers {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	return &CeremonyHandlers{
		manager: manager,
		queries: queries,
		auditor: auditor,
	}
}

/* CreateCeremonyRequest represents a request to initiate a key ceremony */
type CreateCeremonyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	KeyType     string   `json:"key_type,omitempty"`
	KeySize     int      `json:"key_size,omitempty"`
	Witnesses   []string `json:"witnesses"`
}

/* CreateCeremony initiates a witnessed key generation ceremony (admin only) */
func (h *CeremonyHandlers) CreateCeremony(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"), nil)
		return
	}
	if claims.Role != auth.RoleOrgAdmin && claims.Role != auth.RoleSuperAdmin {
		WriteError(w, http.StatusForbidden, fmt.Errorf("only administrators can initiate ceremonies"), nil)
		return
	}

	var req CreateCeremonyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, fmt.Errorf("ceremony name is required"), nil)
		return
	}

	c, err := h.manager.Create(r.Context(), ceremony.CreateParams{
		Name:          req.Name,
		Description:   req.Description,
		KeyType:       req.KeyType,
		KeySize:       req.KeySize,
		WitnessIDs:    req.Witnesses,
		CreatedByID:   claims.UserID,
		CreatedByName: claims.Name,
	})
	if err != nil {
		h.writeCeremonyError(w, err)
		return
	}

	h.resolveWitnesses(r, c)

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    claims.UserID,
		Action:     "ceremony_initiated",
		EntityType: "key_ceremony",
		EntityID:   &c.ID,
		Changes: map[string]interface{}{
			"name":      c.Name,
			"key_type":  c.KeyType,
			"key_size":  c.KeySize,
			"witnesses": len(c.Witnesses),
		},
	})

	WriteSuccess(w, c, http.StatusCreated)
}

/* ListCeremonies lists ceremonies, optionally filtered by status */
func (h *CeremonyHandlers) ListCeremonies(w http.ResponseWriter, r *http.Request) {
	ceremonies, err := h.manager.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err, nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"ceremonies": ceremonies,
		"count":      len(ceremonies),
	}, http.StatusOK)
}

/* GetCeremony returns a single ceremony */
func (h *CeremonyHandlers) GetCeremony(w http.ResponseWriter, r *http.Request) {
	c, err := h.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeCeremonyError(w, err)
		return
	}

	WriteSuccess(w, c, http.StatusOK)
}

/* ApproveCeremony records the calling witness's approval */
func (h *CeremonyHandlers) ApproveCeremony(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"), nil)
		return
	}

	id := mux.Vars(r)["id"]
	h.manager.ResolveWitness(id, claims.UserID, claims.Name, claims.Email)

	c, err := h.manager.Approve(r.Context(), id, claims.UserID)
	if err != nil {
		h.writeCeremonyError(w, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    claims.UserID,
		Action:     "ceremony_witness_approved",
		EntityType: "key_ceremony",
		EntityID:   &c.ID,
		Changes: map[string]interface{}{
			"status": c.Status,
		},
	})

	WriteSuccess(w, c, http.StatusOK)
}

/* GenerateCeremonyKey performs the key generation once every witness has
   approved (admin only) */
func (h *CeremonyHandlers) GenerateCeremonyKey(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"), nil)
		return
	}
	if claims.Role != auth.RoleOrgAdmin && claims.Role != auth.RoleSuperAdmin {
		WriteError(w, http.StatusForbidden, fmt.Errorf("only administrators can generate ceremony keys"), nil)
		return
	}

	c, err := h.manager.Generate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeCeremonyError(w, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Entry{
		ActorID:    claims.UserID,
		Action:     "ceremony_key_generated",
		EntityType: "key_ceremony",
		EntityID:   &c.ID,
		Changes: map[string]interface{}{
			"key_id":      c.KeyID,
			"fingerprint": c.Fingerprint,
		},
	})

	WriteSuccess(w, c, http.StatusOK)
}

/* resolveWitnesses fills witness names and emails from the user table */
func (h *CeremonyHandlers) resolveWitnesses(r *http.Request, c *ceremony.Ceremony) {
	if h.queries == nil {
		return
	}
	for i := range c.Witnesses {
		user, err := h.queries.GetUserByID(r.Context(), c.Witnesses[i].UserID)
		if err != nil {
			continue
		}
		c.Witnesses[i].Name = user.Name
		c.Witnesses[i].Email = user.Email
		h.manager.ResolveWitness(c.ID, user.ID, user.Name, user.Email)
	}
}

func (h *CeremonyHandlers) writeCeremonyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ceremony.ErrNotFound):
		WriteError(w, http.StatusNotFound, err, nil)
	case errors.Is(err, ceremony.ErrNotWitness):
		WriteError(w, http.StatusForbidden, err, nil)
	case errors.Is(err, ceremony.ErrAlreadyApproved), errors.Is(err, ceremony.ErrNotReady):
		WriteError(w, http.StatusConflict, err, nil)
	case errors.Is(err, ceremony.ErrTooFewWitnesses):
		WriteError(w, http.StatusBadRequest, err, nil)
	default:
		WriteError(w, http.StatusInternalServerError, err, nil)
	}
}
