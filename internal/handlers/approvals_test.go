package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/auth"
	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/handlers"
)

func testToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, userID+"@example.com", "Test "+userID, role, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createApproval(t *testing.T, baseURL, token string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/v1/approvals", token, map[string]interface{}{
		"approval_type":      "key_generation",
		"title":              "Generate release key",
		"entity_type":        "pkcs11_key",
		"entity_id":          "key-1",
		"required_approvals": 2,
		"total_approvers":    3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create approval: status %d body %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create approval: no id in response")
	}
	return id
}

func TestApprovalEndpoints(t *testing.T) {
	server, _, _ := handlers.SetupTestServer()
	defer server.Close()

	creator := testToken(t, "creator", auth.RoleDeveloper)

	t.Run("create and get", func(t *testing.T) {
		id := createApproval(t, server.URL, creator)

		resp, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/approvals/"+id, creator, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get: status %d", resp.StatusCode)
		}
		if body["status"] != "pending" {
			t.Errorf("status = %v, want pending", body["status"])
		}
		if body["required_approvals"].(float64) != 2 {
			t.Errorf("required_approvals = %v, want 2", body["required_approvals"])
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/v1/approvals", "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("invalid approval type", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/approvals", creator, map[string]interface{}{
			"approval_type": "nonsense",
			"title":         "x",
			"entity_type":   "pkcs11_key",
			"entity_id":     "key-2",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("vote flow reaches quorum", func(t *testing.T) {
		id := createApproval(t, server.URL, creator)

		for i, voter := range []string{"alice", "bob"} {
			token := testToken(t, voter, auth.RoleApprover)
			resp, body := doJSON(t, http.MethodPost,
				server.URL+"/api/v1/approvals/"+id+"/vote", token,
				map[string]string{"vote": "approve"})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("vote %d: status %d body %v", i, resp.StatusCode, body)
			}
			if i == 1 && body["status"] != "approved" {
				t.Errorf("status after quorum = %v, want approved", body["status"])
			}
		}
	})

	t.Run("self vote is forbidden", func(t *testing.T) {
		id := createApproval(t, server.URL, creator)

		resp, _ := doJSON(t, http.MethodPost,
			server.URL+"/api/v1/approvals/"+id+"/vote", creator,
			map[string]string{"vote": "approve"})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("duplicate vote conflicts", func(t *testing.T) {
		id := createApproval(t, server.URL, creator)
		token := testToken(t, "carol", auth.RoleApprover)

		resp, _ := doJSON(t, http.MethodPost,
			server.URL+"/api/v1/approvals/"+id+"/vote", token,
			map[string]string{"vote": "approve"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("first vote: status %d", resp.StatusCode)
		}

		resp, _ = doJSON(t, http.MethodPost,
			server.URL+"/api/v1/approvals/"+id+"/vote", token,
			map[string]string{"vote": "reject"})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("second vote: status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("invalid vote decision", func(t *testing.T) {
		id := createApproval(t, server.URL, creator)
		token := testToken(t, "dave", auth.RoleApprover)

		resp, _ := doJSON(t, http.MethodPost,
			server.URL+"/api/v1/approvals/"+id+"/vote", token,
			map[string]string{"vote": "abstain"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("vote on missing request", func(t *testing.T) {
		token := testToken(t, "erin", auth.RoleApprover)
		resp, _ := doJSON(t, http.MethodPost,
			server.URL+"/api/v1/approvals/no-such-id/vote", token,
			map[string]string{"vote": "approve"})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet,
			server.URL+"/api/v1/approvals?status=approved", creator, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list: status %d", resp.StatusCode)
		}
		requests, _ := body["requests"].([]interface{})
		for _, raw := range requests {
			req := raw.(map[string]interface{})
			if req["status"] != "approved" {
				t.Errorf("listed request has status %v, want approved", req["status"])
			}
		}

		resp, _ = doJSON(t, http.MethodGet,
			server.URL+"/api/v1/approvals?status=bogus", creator, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("bogus status filter: status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestPolicyEndpoints(t *testing.T) {
	server, _, _ := handlers.SetupTestServer()
	defer server.Close()

	admin := testToken(t, "admin", auth.RoleOrgAdmin)
	developer := testToken(t, "dev", auth.RoleDeveloper)

	t.Run("requires admin role", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/v1/policies", developer, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("create list update delete", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/policies", admin, map[string]interface{}{
			"approval_type":      "key_generation",
			"required_approvals": 3,
			"total_approvers":    5,
			"expiry_hours":       24,
			"is_enabled":         true,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create: status %d body %v", resp.StatusCode, body)
		}
		id := body["id"].(string)

		resp, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/policies", admin, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list: status %d", resp.StatusCode)
		}
		if int(body["count"].(float64)) != 1 {
			t.Errorf("count = %v, want 1", body["count"])
		}

		resp, body = doJSON(t, http.MethodPut, server.URL+"/api/v1/policies/"+id, admin, map[string]interface{}{
			"approval_type":      "key_generation",
			"required_approvals": 2,
			"total_approvers":    5,
			"expiry_hours":       24,
			"is_enabled":         true,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("update: status %d body %v", resp.StatusCode, body)
		}
		if body["required_approvals"].(float64) != 2 {
			t.Errorf("required_approvals = %v, want 2", body["required_approvals"])
		}

		resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/v1/policies/"+id, admin, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delete: status %d", resp.StatusCode)
		}

		resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/v1/policies/"+id, admin, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("get after delete: status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("rejects invalid quorum", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/policies", admin, map[string]interface{}{
			"approval_type":      "key_revocation",
			"required_approvals": 6,
			"total_approvers":    3,
			"expiry_hours":       24,
			"is_enabled":         true,
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("policy governs new requests", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/policies", admin, map[string]interface{}{
			"approval_type":      "signing_config_create",
			"required_approvals": 4,
			"total_approvers":    7,
			"expiry_hours":       12,
			"is_enabled":         true,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create policy: status %d body %v", resp.StatusCode, body)
		}

		resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/approvals", developer, map[string]interface{}{
			"approval_type": "signing_config_create",
			"title":         "New signing config",
			"entity_type":   "signing_config",
			"entity_id":     fmt.Sprintf("cfg-%d", 1),
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create approval: status %d body %v", resp.StatusCode, body)
		}
		if body["required_approvals"].(float64) != 4 {
			t.Errorf("required_approvals = %v, want 4 from policy", body["required_approvals"])
		}
		if body["total_approvers"].(float64) != 7 {
			t.Errorf("total_approvers = %v, want 7 from policy", body["total_approvers"])
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := handlers.SetupTestServer()
	defer server.Close()

	resp, body := doJSON(t, http.MethodGet, server.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestMemoryModeDatabaseRoutes(t *testing.T) {
	server, _, _ := handlers.SetupTestServer()
	defer server.Close()

	t.Run("login answers 503 without a database", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/auth/login", "",
			map[string]string{"email": "alice@example.com", "password": "secret"})
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503 (body %v)", resp.StatusCode, body)
		}
		if body["error"] == nil {
			t.Error("expected an error message in the response body")
		}
	})

	t.Run("entity routes answer 503 without a database", func(t *testing.T) {
		token := testToken(t, "frank", auth.RoleDeveloper)
		for _, path := range []string{"/api/v1/users", "/api/v1/keys", "/api/v1/projects"} {
			resp, _ := doJSON(t, http.MethodGet, server.URL+path, token, nil)
			if resp.StatusCode != http.StatusServiceUnavailable {
				t.Errorf("GET %s: status = %d, want 503", path, resp.StatusCode)
			}
		}
	})

	t.Run("approval routes stay live without a database", func(t *testing.T) {
		creator := testToken(t, "grace", auth.RoleDeveloper)
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/v1/approvals", creator, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET /api/v1/approvals: status = %d, want 200", resp.StatusCode)
		}
	})
}
