// ABOUTME: JSON-RPC 2.0 envelope helpers for the MCP HTTP transports.
// ABOUTME: Writes error and result bodies with the right HTTP status.

package mcp

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Standard JSON-RPC error codes, plus the generic server error the
// Streamable HTTP transport uses for session problems.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
	JSONRPCServerError    = -32000
)

// JSONRPCResponse represents a JSON-RPC 2.0 error response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WriteJSONRPCError writes a JSON-RPC error envelope with the given HTTP status.
// A nil id is encoded as JSON null.
func WriteJSONRPCError(w http.ResponseWriter, logger *slog.Logger, status int, id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil && logger != nil {
		logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
