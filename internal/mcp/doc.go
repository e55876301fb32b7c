// Package mcp implements the Streamable HTTP transports for the HubSpot MCP server.
//
// # Overview
//
// MCP (Model Context Protocol) clients such as the n8n MCP Client node talk
// JSON-RPC 2.0 to a single HTTP endpoint. This package provides three ways
// of serving that endpoint:
//
//   - Handler: the session transport. Each initialize request mints a
//     session ID and a fresh MCP server; later requests are routed by the
//     Mcp-Session-Id header.
//   - NewSDKHandler with a Registry: the mcp-go Streamable HTTP server with
//     one shared MCP server and session IDs issued by the Registry.
//   - NewSDKHandler without a Registry: stateless mode, no session header.
//
// # Session Transport
//
//   - POST /mcp without a session must be an initialize request, otherwise
//     400 "Bad Request: No valid session ID provided"
//   - POST /mcp with an unknown session returns 404 and the client must
//     re-initialize
//   - Notifications are accepted with 202 and no body
//   - GET /mcp opens an SSE stream of server notifications for the session
//   - DELETE /mcp tears the session down and returns 204
//
// Any panic while handling a request is answered with HTTP 500 and a
// JSON-RPC -32603 error carrying the message.
//
// # Sessions
//
// The Registry is safe for concurrent use. Sessions idle for longer than
// the configured timeout are reaped by RunReaper.
package mcp
