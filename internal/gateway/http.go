// ABOUTME: Gin engine for the gateway: MCP routes, health probes, metrics and landing page
// ABOUTME: Includes slog request logging and a recovery that answers with a JSON-RPC 500

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/auth"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/mcp"
)

// newEngine builds the router with every route mounted.
func (g *Gateway) newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(requestLogger(g.logger.With("component", "http")), recovery(g.logger.With("component", "http")))

	mcpHandler := gin.WrapH(auth.BearerToken(g.config.Auth.BearerToken)(g.mcpHandler))
	mcpPath := g.config.MCP.Path
	engine.POST(mcpPath, mcpHandler)
	engine.GET(mcpPath, g.endOnShutdown, mcpHandler)
	engine.DELETE(mcpPath, mcpHandler)

	engine.GET("/healthz", g.handleHealth)
	engine.GET("/health", g.handleHealth)
	engine.GET("/health/ready", g.handleReady)

	if g.metrics != nil {
		engine.GET(g.config.Metrics.Path, gin.WrapH(g.metrics.Handler()))
	}

	engine.GET("/", g.handleLanding)

	return engine
}

// requestLogger logs every request once it completes, at a level chosen by status.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if id := c.Writer.Header().Get(mcp.HeaderSessionID); id != "" {
			attrs = append(attrs, "session_id", id)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.Errors())
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", attrs...)
		case status >= 400:
			logger.Warn("HTTP request", attrs...)
		default:
			logger.Debug("HTTP request", attrs...)
		}
	}
}

// recovery turns a panic into HTTP 500 carrying a JSON-RPC internal error.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				mcp.WriteJSONRPCError(c.Writer, logger, http.StatusInternalServerError, nil,
					mcp.JSONRPCInternalError, fmt.Sprintf("Internal server error: %v", rec))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// endOnShutdown cancels the request context once the gateway starts shutting down.
func (g *Gateway) endOnShutdown(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(g.streamsCtx, cancel)
	defer stop()

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// handleHealth returns 200 OK while the process is serving.
func (g *Gateway) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// readiness is the body of /health/ready.
type readiness struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
	Sessions  int    `json:"sessions"`
	Uptime    string `json:"uptime"`
	Audit     string `json:"audit,omitempty"`
}

// handleReady returns 200 when every dependency is usable and 503 otherwise.
func (g *Gateway) handleReady(c *gin.Context) {
	body := readiness{
		Status:    "ready",
		Transport: g.config.MCP.Transport,
		Sessions:  g.registry.Count(),
		Uptime:    time.Since(g.startedAt).Truncate(time.Second).String(),
	}
	status := http.StatusOK

	if g.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := g.store.Ping(ctx); err != nil {
			g.logger.Warn("audit store not ready", "error", err)
			body.Status = "unavailable"
			body.Audit = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body.Audit = "ok"
		}
	}

	c.JSON(status, body)
}
