// Package keys applies approval outcomes to signing key records. Key
// generation and revocation are quorum-gated: the key row is created (or
// kept) in its current status while the approval is pending, and the
// activator performs the status flip once the request completes.
package keys

import (
	"context"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/logging"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

// StatusWriter is the persistence dependency for applying outcomes.
type StatusWriter interface {
	UpdateKeyStatus(ctx context.Context, id, status string) error
}

// Activator consumes completed approval requests that reference a key.
type Activator struct {
	writer StatusWriter
	logger *logging.Logger
}

// NewActivator creates an activator over the given writer.
func NewActivator(writer StatusWriter, logger *logging.Logger) *Activator {
	return &Activator{writer: writer, logger: logger}
}

// HandleCompletion flips the referenced key's status when a key_generation
// or key_revocation request is approved. Rejected and expired requests leave
// the key in its pre-approval state: a pending key never becomes signable.
func (a *Activator) HandleCompletion(ctx context.Context, req *quorum.Request) {
	if req.EntityType != "pkcs11_key" || req.EntityID == "" {
		return
	}
	if req.Status != quorum.StatusApproved {
		return
	}

	var status string
	switch req.ApprovalType {
	case quorum.TypeKeyGeneration:
		status = "active"
	case quorum.TypeKeyRevocation:
		status = "revoked"
	default:
		return
	}

	if err := a.writer.UpdateKeyStatus(ctx, req.EntityID, status); err != nil {
		if a.logger != nil {
			a.logger.Error("Failed to apply approval outcome to key", err, map[string]interface{}{
				"key_id":     req.EntityID,
				"request_id": req.ID,
				"status":     status,
			})
		}
		return
	}

	if a.logger != nil {
		a.logger.Info("Key status updated from approval outcome", map[string]interface{}{
			"key_id": req.EntityID,
			"status": status,
		})
	}
}
