// ABOUTME: HTTP middleware guarding the admin API with a static bearer token
// ABOUTME: Adds the acting operator identity to the request context

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ActorHeader optionally names the human behind an admin API call.
const ActorHeader = "X-Storefront-Actor"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// AdminTokenMiddleware rejects requests whose bearer token is not adminToken.
// An empty adminToken disables the admin API entirely.
func AdminTokenMiddleware(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken == "" {
				http.Error(w, `{"error":"admin api disabled"}`, http.StatusServiceUnavailable)
				return
			}

			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			actor := strings.TrimSpace(r.Header.Get(ActorHeader))
			if actor == "" {
				actor = "admin"
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), &Actor{Name: actor, Admin: true})))
		})
	}
}
