package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestAuthenticateRequestAdminToken(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Security.AdminToken = "token-123"
	auth := NewAuth(nil, cfg)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Admin-Token", "token-123")
	principal, err := auth.AuthenticateRequest(r)
	if err != nil {
		t.Fatalf("header token rejected: %v", err)
	}
	if principal.Role != "admin" {
		t.Fatalf("role = %q", principal.Role)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer token-123")
	if _, err := auth.AuthenticateRequest(r); err != nil {
		t.Fatalf("bearer token rejected: %v", err)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Admin-Token", "wrong")
	if _, err := auth.AuthenticateRequest(r); err == nil {
		t.Fatal("wrong token accepted")
	}

	r = httptest.NewRequest("GET", "/", nil)
	if _, err := auth.AuthenticateRequest(r); err == nil {
		t.Fatal("bare request accepted")
	}
}

func TestHandleMeUnauthenticated(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Security.AdminToken = "token-123"
	auth := NewAuth(nil, cfg)

	w := httptest.NewRecorder()
	auth.HandleMe(w, httptest.NewRequest("GET", "/api/v1/auth/me", nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["authenticated"] != false {
		t.Fatalf("body = %+v", body)
	}
}
