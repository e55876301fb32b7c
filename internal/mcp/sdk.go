// ABOUTME: Transports built on the mcp-go Streamable HTTP server.
// ABOUTME: Stateful mode shares the session registry; stateless mode keeps no sessions.

package mcp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

// SDKConfig configures the SDK-backed transports.
type SDKConfig struct {
	Server *server.MCPServer
	// Registry mints and validates session IDs; nil selects stateless mode.
	Registry          *Registry
	Path              string
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// NewSDKHandler wraps one shared MCP server in the SDK's Streamable HTTP transport.
func NewSDKHandler(cfg SDKConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []server.StreamableHTTPOption{
		server.WithLogger(sdkLogger{logger: logger}),
	}
	if cfg.Path != "" {
		opts = append(opts, server.WithEndpointPath(cfg.Path))
	}
	if cfg.Registry != nil {
		opts = append(opts, server.WithSessionIdManager(cfg.Registry))
		if cfg.HeartbeatInterval > 0 {
			opts = append(opts, server.WithHeartbeatInterval(cfg.HeartbeatInterval))
		}
	} else {
		opts = append(opts, server.WithStateLess(true))
	}

	return server.NewStreamableHTTPServer(cfg.Server, opts...)
}

// sdkLogger adapts slog to the SDK's printf-style logger.
type sdkLogger struct {
	logger *slog.Logger
}

func (l sdkLogger) Infof(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l sdkLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
