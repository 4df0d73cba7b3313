package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentityMiddlewareExtractsHeaders(t *testing.T) {
	var got *Identity
	handler := NewIdentityMiddleware(false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.Header.Set(HeaderUserID, "u-42")
	req.Header.Set(HeaderUserRole, "Question_Manager")
	req.Header.Set(HeaderTenantID, "t1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil {
		t.Fatal("identity not set on context")
	}
	if got.UserID != "u-42" {
		t.Errorf("UserID = %q, want u-42", got.UserID)
	}
	// Role casing is preserved here; the authorization layer normalizes it.
	if got.Role != "Question_Manager" {
		t.Errorf("Role = %q, want Question_Manager", got.Role)
	}
	if got.TenantID != "t1" {
		t.Errorf("TenantID = %q, want t1", got.TenantID)
	}
}

func TestIdentityMiddlewareRejectsMissingHeaders(t *testing.T) {
	handler := NewIdentityMiddleware(false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestIdentityMiddlewareOptionalPassesThrough(t *testing.T) {
	called := false
	handler := NewIdentityMiddleware(true).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if GetIdentity(r) != nil {
			t.Error("identity should be nil without headers")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("optional middleware should let the request through")
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Error("request ID should be generated when absent")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "upstream-id" {
		t.Error("upstream request ID should be preserved")
	}
}
