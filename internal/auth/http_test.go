// ABOUTME: Tests for the bearer-token middleware
// ABOUTME: Covers token extraction, rejection responses, and the disabled mode

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   string
	}{
		{"valid", "Bearer abc", "abc", ""},
		{"lowercase scheme", "bearer abc", "abc", ""},
		{"missing", "", "", "missing authorization header"},
		{"basic auth", "Basic dXNlcjpwYXNz", "", "invalid authorization header format"},
		{"no token", "Bearer ", "", "empty token"},
		{"scheme only", "Bearer", "", "invalid authorization header format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
			if errMsg != tt.wantErr {
				t.Errorf("errMsg = %q, want %q", errMsg, tt.wantErr)
			}
		})
	}
}

func TestBearerToken_ValidToken(t *testing.T) {
	handler := BearerToken("s3cret")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestBearerToken_Rejects(t *testing.T) {
	handler := BearerToken("s3cret")(okHandler())

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"missing", "", `{"error":"missing authorization header"}`},
		{"wrong token", "Bearer nope", `{"error":"invalid token"}`},
		{"prefix of token", "Bearer s3c", `{"error":"invalid token"}`},
		{"wrong scheme", "Token s3cret", `{"error":"invalid authorization header format"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}
			if got := rr.Header().Get("WWW-Authenticate"); got != `Bearer realm="hubspot-mcp"` {
				t.Errorf("WWW-Authenticate = %q", got)
			}
			if got := rr.Body.String(); got != tt.wantMsg+"\n" {
				t.Errorf("body = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestBearerToken_Disabled(t *testing.T) {
	next := okHandler()
	handler := BearerToken("")(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
