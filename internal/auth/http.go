// ABOUTME: HTTP middleware for static bearer-token authentication on the MCP endpoint
// ABOUTME: Compares the Authorization header against the configured token in constant time

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// BearerToken creates an HTTP middleware that requires Authorization: Bearer <token>.
// An empty token disables the check and returns next unchanged.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg == "" && subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				errMsg = "invalid token"
			}
			if errMsg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="hubspot-mcp"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"` + errMsg + `"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
