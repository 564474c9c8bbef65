// ABOUTME: Tests for the admin bearer token middleware
// ABOUTME: Covers missing, malformed, wrong and valid tokens plus actor propagation

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminTokenMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"disabled", "", "Bearer anything", http.StatusServiceUnavailable},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"empty token", "s3cret", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "s3cret", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AdminTokenMiddleware(tt.configured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/admin/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAdminTokenMiddleware_Actor(t *testing.T) {
	var got *Actor
	handler := AdminTokenMiddleware("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set(ActorHeader, "  Dilnoza ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("actor missing from context")
	}
	if got.Name != "Dilnoza" || !got.Admin {
		t.Errorf("actor = %+v, want Dilnoza admin", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got.Name != "admin" {
		t.Errorf("default actor = %q, want admin", got.Name)
	}
}

func TestActorName(t *testing.T) {
	if got := ActorName(context.Background(), "web"); got != "web" {
		t.Errorf("ActorName(empty ctx) = %q, want web", got)
	}
	ctx := WithActor(context.Background(), &Actor{Name: "Timur"})
	if got := ActorName(ctx, "web"); got != "Timur" {
		t.Errorf("ActorName = %q, want Timur", got)
	}
}
