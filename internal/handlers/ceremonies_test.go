package handlers_test

import (
	"net/http"
	"testing"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/handlers"
)

func createCeremony(t *testing.T, baseURL, token string, witnesses []string) map[string]interface{} {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/v1/ceremonies", token, map[string]interface{}{
		"name":      "Root CA key ceremony",
		"key_type":  "RSA",
		"key_size":  4096,
		"witnesses": witnesses,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create ceremony: status %d body %v", resp.StatusCode, body)
	}
	return body
}

func TestCeremonyEndpoints(t *testing.T) {
	server, _, _ := handlers.SetupTestServer()
	defer server.Close()

	admin := testToken(t, "admin", auth.RoleOrgAdmin)
	alice := testToken(t, "alice", auth.RoleApprover)
	bob := testToken(t, "bob", auth.RoleApprover)

	t.Run("create requires admin role", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies", alice,
			map[string]interface{}{"name": "x", "witnesses": []string{"alice", "bob"}})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("create rejects a single witness", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies", admin,
			map[string]interface{}{"name": "x", "witnesses": []string{"alice"}})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("full witness flow generates a key", func(t *testing.T) {
		body := createCeremony(t, server.URL, admin, []string{"alice", "bob"})
		id := body["id"].(string)
		if body["status"] != "pending_witnesses" {
			t.Errorf("status = %v, want pending_witnesses", body["status"])
		}

		/* Generation before the witnesses sign off is refused */
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/generate", admin, nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("premature generate: status = %d, want 409", resp.StatusCode)
		}

		resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/approve", alice, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("alice approve: status %d body %v", resp.StatusCode, body)
		}
		if body["status"] != "pending_witnesses" {
			t.Errorf("status after one approval = %v, want pending_witnesses", body["status"])
		}

		resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/approve", bob, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("bob approve: status %d body %v", resp.StatusCode, body)
		}
		if body["status"] != "ready" {
			t.Errorf("status after all approvals = %v, want ready", body["status"])
		}

		resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/generate", admin, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("generate: status %d body %v", resp.StatusCode, body)
		}
		if body["status"] != "completed" {
			t.Errorf("status = %v, want completed", body["status"])
		}
		if body["key_id"] == nil || body["fingerprint"] == nil {
			t.Errorf("key material missing from response: %v", body)
		}
	})

	t.Run("non-witness cannot approve", func(t *testing.T) {
		body := createCeremony(t, server.URL, admin, []string{"alice", "bob"})
		id := body["id"].(string)

		mallory := testToken(t, "mallory", auth.RoleApprover)
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/approve", mallory, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("duplicate approval conflicts", func(t *testing.T) {
		body := createCeremony(t, server.URL, admin, []string{"alice", "bob"})
		id := body["id"].(string)

		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/approve", alice, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("first approval: status %d", resp.StatusCode)
		}
		resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/approve", alice, nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("second approval: status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("generate requires admin role", func(t *testing.T) {
		body := createCeremony(t, server.URL, admin, []string{"alice", "bob"})
		id := body["id"].(string)

		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ceremonies/"+id+"/generate", alice, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/ceremonies?status=completed", admin, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list: status %d", resp.StatusCode)
		}
		ceremonies, _ := body["ceremonies"].([]interface{})
		for _, raw := range ceremonies {
			c := raw.(map[string]interface{})
			if c["status"] != "completed" {
				t.Errorf("listed ceremony has status %v, want completed", c["status"])
			}
		}

		resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/v1/ceremonies?status=bogus", admin, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("bogus filter: status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("unknown ceremony is 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/v1/ceremonies/no-such-id", admin, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}
