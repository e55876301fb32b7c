// Package gateway assembles and runs the hubspot-mcp server.
//
// # Overview
//
// New builds every component from a config.Config: the HubSpot client
// (with its optional list cache and rate limiter), Prometheus metrics, the
// SQLite audit store, the MCP tool factory and the transport selected by
// mcp.transport. Everything is mounted on a gin engine:
//
//	POST|GET|DELETE <mcp.path>   MCP Streamable HTTP endpoint (bearer token optional)
//	GET /healthz, /health        liveness
//	GET /health/ready            readiness (sessions, audit store)
//	GET <metrics.path>           Prometheus metrics, when enabled
//	GET /                        landing page rendered from Markdown
//
// # Lifecycle
//
// Run listens on server.http_addr, or joins a tailnet through tsnet when
// tailscale.enabled is set (plain HTTP, HTTPS with tailnet certificates, or
// Funnel). Idle MCP sessions are reaped in the background. When the
// context is canceled Run shuts down within five seconds: sessions are
// closed, then the HTTP server, the cache and the audit store.
package gateway
