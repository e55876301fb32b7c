// ABOUTME: Tests for the session-aware Streamable HTTP transport.
// ABOUTME: Covers the session lifecycle, request validation, SSE streams and panic handling.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testFactory builds servers with an echo tool, a notifying tool and a panicking tool.
func testFactory() *server.MCPServer {
	srv := server.NewMCPServer("test-mcp", "1.0.0", server.WithToolCapabilities(false))
	srv.AddTool(mcpgo.NewTool("echo",
		mcpgo.WithDescription("Echo the message back"),
		mcpgo.WithString("message", mcpgo.Required()),
	), func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText(req.GetString("message", "")), nil
	})
	srv.AddTool(mcpgo.NewTool("notify"), func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		err := server.ServerFromContext(ctx).SendNotificationToClient(ctx, "notifications/message", map[string]any{
			"level": "info",
			"data":  "hello from the server",
		})
		if err != nil {
			return nil, err
		}
		return mcpgo.NewToolResultText("sent"), nil
	})
	srv.AddTool(mcpgo.NewTool("explode"), func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		panic("kaboom")
	})
	return srv
}

func newTestHandler(t *testing.T, mutate func(*Config)) (*Handler, *Registry) {
	t.Helper()
	registry := NewRegistry()
	cfg := Config{
		Factory:  testFactory,
		Registry: registry,
		Logger:   testLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { registry.CloseAll(context.Background()) })
	return h, registry
}

func post(t *testing.T, h http.Handler, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func initialize(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := post(t, h, "", initializeBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := rr.Header().Get(HeaderSessionID)
	require.NotEmpty(t, id)
	return id
}

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error"`
}

func decodeReply(t *testing.T, rr *httptest.ResponseRecorder) rpcReply {
	t.Helper()
	var reply rpcReply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply), rr.Body.String())
	return reply
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(Config{Registry: NewRegistry()})
	assert.Error(t, err)

	_, err = NewHandler(Config{Factory: testFactory})
	assert.Error(t, err)
}

func TestInitialize_CreatesSession(t *testing.T) {
	h, registry := newTestHandler(t, nil)

	rr := post(t, h, "", initializeBody)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	id := rr.Header().Get(HeaderSessionID)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, registry.Count())

	reply := decodeReply(t, rr)
	assert.Nil(t, reply.Error)
	assert.JSONEq(t, "1", string(reply.ID))

	var result mcpgo.InitializeResult
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, "test-mcp", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestInitialize_EachSessionGetsItsOwnServer(t *testing.T) {
	h, registry := newTestHandler(t, nil)

	a := initialize(t, h)
	b := initialize(t, h)
	require.NotEqual(t, a, b)

	sa, err := registry.Get(a)
	require.NoError(t, err)
	sb, err := registry.Get(b)
	require.NoError(t, err)
	assert.NotSame(t, sa.Server(), sb.Server())
}

func TestPost_WithoutSessionRequiresInitialize(t *testing.T) {
	h, registry := newTestHandler(t, nil)

	rr := post(t, h, "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	reply := decodeReply(t, rr)
	require.NotNil(t, reply.Error)
	assert.Equal(t, JSONRPCServerError, reply.Error.Code)
	assert.Equal(t, "Bad Request: No valid session ID provided", reply.Error.Message)
	assert.JSONEq(t, "2", string(reply.ID))
	assert.Equal(t, 0, registry.Count())
}

func TestPost_UnknownSession(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rr := post(t, h, "does-not-exist", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	reply := decodeReply(t, rr)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "Session not found", reply.Error.Message)
}

func TestPost_ReinitializeRejected(t *testing.T) {
	h, registry := newTestHandler(t, nil)
	id := initialize(t, h)

	rr := post(t, h, id, initializeBody)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, registry.Count())
}

func TestSessionFlow(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	id := initialize(t, h)

	rr := post(t, h, id, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = post(t, h, id, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, id, rr.Header().Get(HeaderSessionID))
	var list mcpgo.ListToolsResult
	require.NoError(t, json.Unmarshal(decodeReply(t, rr).Result, &list))
	assert.Len(t, list.Tools, 3)

	rr = post(t, h, id, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	reply := decodeReply(t, rr)
	require.Nil(t, reply.Error)
	assert.Contains(t, string(reply.Result), `"text":"hi"`)
}

func TestPost_Validation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    int
	}{
		{"invalid json", "application/json", `{"jsonrpc":`, http.StatusBadRequest, JSONRPCParseError},
		{"batch", "application/json", `[` + initializeBody + `]`, http.StatusBadRequest, JSONRPCInvalidRequest},
		{"wrong version", "application/json", `{"jsonrpc":"1.0","id":1,"method":"initialize"}`, http.StatusBadRequest, JSONRPCInvalidRequest},
		{"wrong content type", "text/plain", initializeBody, http.StatusUnsupportedMediaType, JSONRPCServerError},
		{"missing content type", "", initializeBody, http.StatusUnsupportedMediaType, JSONRPCServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, registry := newTestHandler(t, nil)

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			reply := decodeReply(t, rr)
			require.NotNil(t, reply.Error)
			assert.Equal(t, tt.wantCode, reply.Error.Code)
			assert.Equal(t, 0, registry.Count())
		})
	}
}

func TestPost_ContentTypeWithCharset(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPost_BodyTooLarge(t *testing.T) {
	h, _ := newTestHandler(t, func(cfg *Config) { cfg.MaxBodyBytes = 64 })

	rr := post(t, h, "", initializeBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestPost_PanicBecomes500(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	id := initialize(t, h)

	rr := post(t, h, id, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"explode"}}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	reply := decodeReply(t, rr)
	require.NotNil(t, reply.Error)
	assert.Equal(t, JSONRPCInternalError, reply.Error.Code)
	assert.Contains(t, reply.Error.Message, "kaboom")
}

func TestPost_FactoryPanicBecomes500(t *testing.T) {
	h, registry := newTestHandler(t, func(cfg *Config) {
		cfg.Factory = func() *server.MCPServer { panic("no server for you") }
	})

	rr := post(t, h, "", initializeBody)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "no server for you")
	assert.Equal(t, 0, registry.Count())
}

func TestDelete(t *testing.T) {
	h, registry := newTestHandler(t, nil)

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/mcp", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		req.Header.Set(HeaderSessionID, "nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("tears down the session", func(t *testing.T) {
		id := initialize(t, h)
		require.Equal(t, 1, registry.Count())

		req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
		req.Header.Set(HeaderSessionID, id)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, 0, registry.Count())

		after := post(t, h, id, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		assert.Equal(t, http.StatusNotFound, after.Code)
	})
}

func TestUnsupportedMethod(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST, GET, DELETE", rr.Header().Get("Allow"))
}

func TestGet_Validation(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	t.Run("not acceptable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.Header.Set("Accept", "application/json")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotAcceptable, rr.Code)
	})

	t.Run("missing session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.Header.Set("Accept", "text/event-stream")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set(HeaderSessionID, "nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGet_StreamsNotifications(t *testing.T) {
	h, registry := newTestHandler(t, func(cfg *Config) { cfg.HeartbeatInterval = 20 * time.Millisecond })
	ts := httptest.NewServer(h)
	defer ts.Close()

	id := initialize(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(HeaderSessionID, id)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sess, err := registry.Get(id)
	require.NoError(t, err)
	require.Eventually(t, sess.streaming.Load, time.Second, 5*time.Millisecond)

	t.Run("second stream conflicts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set(HeaderSessionID, id)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	rr := post(t, h, id, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"notify"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data, "expected a notification event")

	var notification mcpgo.JSONRPCNotification
	require.NoError(t, json.Unmarshal([]byte(data), &notification))
	assert.Equal(t, "notifications/message", notification.Method)

	// Deleting the session ends the stream.
	delReq := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	delReq.Header.Set(HeaderSessionID, id)
	delRR := httptest.NewRecorder()
	h.ServeHTTP(delRR, delReq)
	require.Equal(t, http.StatusNoContent, delRR.Code)

	_, err = io.Copy(io.Discard, resp.Body)
	assert.NoError(t, err)
}

func TestStreamableClient_EndToEnd(t *testing.T) {
	h, registry := newTestHandler(t, nil)
	ts := httptest.NewServer(h)
	defer ts.Close()

	c, err := client.NewStreamableHttpClient(ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "e2e", Version: "1.0.0"}
	res, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, "test-mcp", res.ServerInfo.Name)
	assert.Equal(t, 1, registry.Count())

	tools, err := c.ListTools(ctx, mcpgo.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 3)

	callReq := mcpgo.CallToolRequest{}
	callReq.Params.Name = "echo"
	callReq.Params.Arguments = map[string]any{"message": "ticket"}
	result, err := c.CallTool(ctx, callReq)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := mcpgo.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "ticket", text.Text)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond,
		"client close sends DELETE")
}

func TestAcceptsMediaType(t *testing.T) {
	assert.True(t, acceptsMediaType("", "text/event-stream"))
	assert.True(t, acceptsMediaType("*/*", "text/event-stream"))
	assert.True(t, acceptsMediaType("application/json, text/event-stream", "text/event-stream"))
	assert.False(t, acceptsMediaType("application/json", "text/event-stream"))
}

func TestWriteJSONRPCError_NullID(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSONRPCError(rr, testLogger(), http.StatusInternalServerError, nil, JSONRPCInternalError, "boom")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"boom"}}`, rr.Body.String())
	assert.True(t, bytes.HasSuffix(rr.Body.Bytes(), []byte("\n")))
}
