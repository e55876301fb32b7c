// ABOUTME: Session-aware Streamable HTTP transport for the HubSpot MCP server.
// ABOUTME: Maps Mcp-Session-Id to a per-session MCP server and handles POST, GET and DELETE.

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// HeaderSessionID carries the session ID on every request after initialize.
const HeaderSessionID = "Mcp-Session-Id"

// MaxRequestBodySize is the default limit for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

const (
	msgNoSession       = "Bad Request: No valid session ID provided"
	msgSessionNotFound = "Session not found"
)

// Config holds configuration for the session transport.
type Config struct {
	// Factory builds the MCP server for each new session.
	Factory  func() *server.MCPServer
	Registry *Registry
	Logger   *slog.Logger

	// MaxBodyBytes limits POST bodies; zero means MaxRequestBodySize.
	MaxBodyBytes int64
	// HeartbeatInterval spaces SSE keepalive comments on GET streams; zero disables them.
	HeartbeatInterval time.Duration
}

// Handler implements the Streamable HTTP transport with one MCP server per session.
type Handler struct {
	factory   func() *server.MCPServer
	registry  *Registry
	logger    *slog.Logger
	maxBody   int64
	heartbeat time.Duration
}

// NewHandler creates a session transport.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Factory == nil {
		return nil, errors.New("server factory is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("session registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = MaxRequestBodySize
	}

	return &Handler{
		factory:   cfg.Factory,
		registry:  cfg.Registry,
		logger:    logger,
		maxBody:   maxBody,
		heartbeat: cfg.HeartbeatInterval,
	}, nil
}

// envelope is the part of a JSON-RPC message needed for routing.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
}

// ServeHTTP is the single MCP endpoint supporting POST, GET, and DELETE.
// Any panic below this point becomes HTTP 500 with a JSON-RPC internal error.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic handling MCP request",
				"method", r.Method,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.internalError(w, nil, fmt.Errorf("%v", rec))
		}
	}()

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		WriteJSONRPCError(w, h.logger, http.StatusMethodNotAllowed, nil, JSONRPCServerError, "Method not allowed.")
	}
}

// handlePost processes one JSON-RPC message sent via HTTP POST.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	if !hasMediaType(r.Header.Get("Content-Type"), "application/json") {
		WriteJSONRPCError(w, h.logger, http.StatusUnsupportedMediaType, nil, JSONRPCServerError,
			"Unsupported Media Type: Content-Type must be application/json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		WriteJSONRPCError(w, h.logger, http.StatusBadRequest, nil, JSONRPCParseError, "Parse error: failed to read request body")
		return
	}
	if int64(len(body)) > h.maxBody {
		WriteJSONRPCError(w, h.logger, http.StatusRequestEntityTooLarge, nil, JSONRPCInvalidRequest, "Request body too large")
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		WriteJSONRPCError(w, h.logger, http.StatusBadRequest, nil, JSONRPCInvalidRequest, "Invalid Request: batch requests are not supported")
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		WriteJSONRPCError(w, h.logger, http.StatusBadRequest, nil, JSONRPCParseError, "Parse error: invalid JSON")
		return
	}
	if env.JSONRPC != mcpgo.JSONRPC_VERSION {
		WriteJSONRPCError(w, h.logger, http.StatusBadRequest, env.ID, JSONRPCInvalidRequest, "Invalid Request: jsonrpc must be \"2.0\"")
		return
	}

	isInitialize := env.Method == string(mcpgo.MethodInitialize)
	sessionID := r.Header.Get(HeaderSessionID)

	var sess *Session
	switch {
	case sessionID == "" && isInitialize:
		sess, err = h.registry.Create(r.Context(), h.factory())
		if err != nil {
			h.internalError(w, env.ID, fmt.Errorf("creating session: %w", err))
			return
		}
		h.logger.Info("MCP session created", "session_id", sess.ID)
	case sessionID == "":
		WriteJSONRPCError(w, h.logger, http.StatusBadRequest, env.ID, JSONRPCServerError, msgNoSession)
		return
	default:
		sess, err = h.registry.Get(sessionID)
		if err != nil {
			// Session expired or unknown: the client must re-initialize
			WriteJSONRPCError(w, h.logger, http.StatusNotFound, env.ID, JSONRPCServerError, msgSessionNotFound)
			return
		}
		if isInitialize {
			WriteJSONRPCError(w, h.logger, http.StatusBadRequest, env.ID, JSONRPCInvalidRequest, "Invalid Request: Server already initialized")
			return
		}
	}

	srv := sess.Server()
	if srv == nil {
		h.internalError(w, env.ID, fmt.Errorf("session %s has no server", sess.ID))
		return
	}

	h.logger.Debug("MCP request", "method", env.Method, "session_id", sess.ID)

	ctx := srv.WithContext(r.Context(), sess.client)
	resp := srv.HandleMessage(ctx, body)

	w.Header().Set(HeaderSessionID, sess.ID)
	if resp == nil {
		// Notifications and client responses: accepted, no body
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if isInitialize && isErrorResponse(resp) {
		h.registry.Delete(r.Context(), sess.ID)
		w.Header().Del(HeaderSessionID)
		h.logger.Warn("MCP initialize rejected", "session_id", sess.ID)
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// handleGet opens a server-to-client SSE stream for an existing session.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !acceptsMediaType(r.Header.Get("Accept"), "text/event-stream") {
		WriteJSONRPCError(w, h.logger, http.StatusNotAcceptable, nil, JSONRPCServerError,
			"Not Acceptable: Client must accept text/event-stream")
		return
	}

	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if !sess.streaming.CompareAndSwap(false, true) {
		WriteJSONRPCError(w, h.logger, http.StatusConflict, nil, JSONRPCServerError,
			"Conflict: Only one SSE stream is allowed per session")
		return
	}
	defer sess.streaming.Store(false)

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.internalError(w, nil, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(HeaderSessionID, sess.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("MCP stream opened", "session_id", sess.ID)
	defer h.logger.Debug("MCP stream closed", "session_id", sess.ID)

	var heartbeat <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case n := <-sess.client.notifications:
			if err := writeSSEEvent(w, n); err != nil {
				h.logger.Debug("MCP stream write failed", "session_id", sess.ID, "error", err)
				return
			}
			flusher.Flush()
			sess.touch()
		case <-heartbeat:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
			sess.touch()
		case <-sess.client.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// handleDelete terminates a session.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if h.registry.Delete(r.Context(), sess.ID) {
		h.logger.Info("MCP session terminated", "session_id", sess.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the request's session or writes the 400/404 response.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.registry.Get(r.Header.Get(HeaderSessionID))
	switch {
	case errors.Is(err, ErrMissingSessionID):
		WriteJSONRPCError(w, h.logger, http.StatusBadRequest, nil, JSONRPCServerError, msgNoSession)
		return nil, false
	case err != nil:
		WriteJSONRPCError(w, h.logger, http.StatusNotFound, nil, JSONRPCServerError, msgSessionNotFound)
		return nil, false
	}
	return sess, true
}

// internalError reports an unexpected failure as HTTP 500 carrying the error message.
func (h *Handler) internalError(w http.ResponseWriter, id json.RawMessage, err error) {
	h.logger.Error("MCP request failed", "error", err)
	WriteJSONRPCError(w, h.logger, http.StatusInternalServerError, id, JSONRPCInternalError, "Internal server error: "+err.Error())
}

func isErrorResponse(msg mcpgo.JSONRPCMessage) bool {
	switch msg.(type) {
	case mcpgo.JSONRPCError, *mcpgo.JSONRPCError:
		return true
	}
	return false
}

func writeSSEEvent(w io.Writer, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

func hasMediaType(header, want string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	return err == nil && strings.EqualFold(mediaType, want)
}

// acceptsMediaType reports whether an Accept header admits want.
// An empty header accepts everything.
func acceptsMediaType(header, want string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}
	for _, part := range strings.Split(header, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mediaType == "*/*" || strings.EqualFold(mediaType, want) {
			return true
		}
	}
	return false
}
