// Package auth protects the MCP endpoint with a static bearer token.
//
// BearerToken wraps an http.Handler so that every request must carry
// "Authorization: Bearer <token>". Tokens are compared in constant time.
// Failures get 401 with a WWW-Authenticate challenge and a small JSON
// body. An empty token disables the check.
//
// Health, readiness and metrics routes are mounted outside the middleware.
package auth
