package keys

import (
	"context"
	"testing"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

type fakeStatusWriter struct {
	calls map[string]string
}

func (f *fakeStatusWriter) UpdateKeyStatus(_ context.Context, id, status string) error {
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[id] = status
	return nil
}

func TestActivator_HandleCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("approved generation activates key", func(t *testing.T) {
		writer := &fakeStatusWriter{}
		NewActivator(writer, nil).HandleCompletion(ctx, &quorum.Request{
			ApprovalType: quorum.TypeKeyGeneration,
			EntityType:   "pkcs11_key",
			EntityID:     "key-1",
			Status:       quorum.StatusApproved,
		})

		if writer.calls["key-1"] != "active" {
			t.Errorf("Expected key-1 -> active, got %v", writer.calls)
		}
	})

	t.Run("approved revocation revokes key", func(t *testing.T) {
		writer := &fakeStatusWriter{}
		NewActivator(writer, nil).HandleCompletion(ctx, &quorum.Request{
			ApprovalType: quorum.TypeKeyRevocation,
			EntityType:   "pkcs11_key",
			EntityID:     "key-2",
			Status:       quorum.StatusApproved,
		})

		if writer.calls["key-2"] != "revoked" {
			t.Errorf("Expected key-2 -> revoked, got %v", writer.calls)
		}
	})

	t.Run("rejected request leaves key untouched", func(t *testing.T) {
		writer := &fakeStatusWriter{}
		NewActivator(writer, nil).HandleCompletion(ctx, &quorum.Request{
			ApprovalType: quorum.TypeKeyGeneration,
			EntityType:   "pkcs11_key",
			EntityID:     "key-3",
			Status:       quorum.StatusRejected,
		})

		if len(writer.calls) != 0 {
			t.Errorf("Expected no status writes, got %v", writer.calls)
		}
	})

	t.Run("expired request leaves key untouched", func(t *testing.T) {
		writer := &fakeStatusWriter{}
		NewActivator(writer, nil).HandleCompletion(ctx, &quorum.Request{
			ApprovalType: quorum.TypeKeyRevocation,
			EntityType:   "pkcs11_key",
			EntityID:     "key-4",
			Status:       quorum.StatusExpired,
		})

		if len(writer.calls) != 0 {
			t.Errorf("Expected no status writes, got %v", writer.calls)
		}
	})

	t.Run("non-key entities are ignored", func(t *testing.T) {
		writer := &fakeStatusWriter{}
		NewActivator(writer, nil).HandleCompletion(ctx, &quorum.Request{
			ApprovalType: quorum.TypeOrganizationApproval,
			EntityType:   "organization",
			EntityID:     "org-1",
			Status:       quorum.StatusApproved,
		})

		if len(writer.calls) != 0 {
			t.Errorf("Expected no status writes, got %v", writer.calls)
		}
	})
}
