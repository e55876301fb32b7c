// ABOUTME: Tests for the SDK-backed Streamable HTTP transports.
// ABOUTME: Verifies registry-issued session IDs, DELETE teardown and stateless mode.

package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sdkPost(t *testing.T, h http.Handler, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSDKHandler_Stateful(t *testing.T) {
	registry := NewRegistry()
	h := NewSDKHandler(SDKConfig{
		Server:   testFactory(),
		Registry: registry,
		Path:     "/mcp",
		Logger:   testLogger(),
	})

	rr := sdkPost(t, h, "", initializeBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := rr.Header().Get(HeaderSessionID)
	require.NotEmpty(t, id)
	assert.Equal(t, []string{id}, registry.IDs(), "session IDs come from the registry")

	rr = sdkPost(t, h, id, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"echo"`)

	rr = sdkPost(t, h, "unknown", `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(HeaderSessionID, id)
	del := httptest.NewRecorder()
	h.ServeHTTP(del, req)
	assert.Equal(t, http.StatusOK, del.Code)
	assert.Equal(t, 0, registry.Count())

	rr = sdkPost(t, h, id, `{"jsonrpc":"2.0","id":4,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSDKHandler_Stateless(t *testing.T) {
	h := NewSDKHandler(SDKConfig{Server: testFactory(), Logger: testLogger()})

	rr := sdkPost(t, h, "", initializeBody)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get(HeaderSessionID))

	rr = sdkPost(t, h, "", `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"stateless"}}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "stateless")
}
