// ABOUTME: Builds the MCP server for hubspot-mcp and observes every tool call.
// ABOUTME: Logs each call and forwards a CallRecord to metrics and the audit log.

package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeToolError = "tool_error"
	OutcomeError     = "error"
)

// CallRecord describes one finished tool call.
type CallRecord struct {
	Tool           string
	SessionID      string
	Outcome        string
	UpstreamStatus int // 0 when HubSpot was not reached
	Duration       time.Duration
	Error          string
}

// Recorder receives a CallRecord after every tool call.
type Recorder interface {
	RecordToolCall(ctx context.Context, rec CallRecord)
}

// Deps are the collaborators a server needs.
type Deps struct {
	Backend      Backend
	Logger       *slog.Logger
	Recorders    []Recorder
	Instructions string
}

// Factory builds a fresh MCP server. The session transport calls it once per session.
type Factory func() *server.MCPServer

// NewFactory returns a Factory bound to name, version and deps.
func NewFactory(name, version string, deps Deps, opts ...server.ServerOption) Factory {
	return func() *server.MCPServer {
		return NewServer(name, version, deps, opts...)
	}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(name, version string, deps Deps, opts ...server.ServerOption) *server.MCPServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(observe(logger.With("component", "tools"), deps.Recorders)),
		server.WithRecovery(),
	}
	if deps.Instructions != "" {
		base = append(base, server.WithInstructions(deps.Instructions))
	}

	srv := server.NewMCPServer(name, version, append(base, opts...)...)
	Register(srv, deps.Backend)
	return srv
}

// callInfo is filled in by handlers for the observing middleware.
type callInfo struct {
	mu             sync.Mutex
	upstreamStatus int
}

type callInfoKey struct{}

func setUpstreamStatus(ctx context.Context, status int) {
	info, ok := ctx.Value(callInfoKey{}).(*callInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	info.upstreamStatus = status
	info.mu.Unlock()
}

// observe wraps every tool handler with logging and recording.
func observe(logger *slog.Logger, recorders []Recorder) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			info := &callInfo{}
			start := time.Now()

			result, err := next(context.WithValue(ctx, callInfoKey{}, info), req)

			info.mu.Lock()
			rec := CallRecord{
				Tool:           req.Params.Name,
				SessionID:      sessionID(ctx),
				Outcome:        OutcomeSuccess,
				UpstreamStatus: info.upstreamStatus,
				Duration:       time.Since(start),
			}
			info.mu.Unlock()

			switch {
			case err != nil:
				rec.Outcome = OutcomeError
				rec.Error = err.Error()
			case result != nil && result.IsError:
				rec.Outcome = OutcomeToolError
				rec.Error = resultText(result)
			}

			attrs := []any{
				"tool", rec.Tool,
				"session_id", rec.SessionID,
				"outcome", rec.Outcome,
				"upstream_status", rec.UpstreamStatus,
				"duration", rec.Duration,
			}
			if rec.Error != "" {
				logger.Warn("tool call failed", append(attrs, "error", rec.Error)...)
			} else {
				logger.Info("tool call", attrs...)
			}

			for _, r := range recorders {
				r.RecordToolCall(ctx, rec)
			}

			return result, err
		}
	}
}

func sessionID(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return ""
}
