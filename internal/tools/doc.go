// Package tools defines the MCP tools exposed by hubspot-mcp.
//
// # Tools
//
//   - list-tickets: List HubSpot tickets (optional limit, after, properties, archived)
//   - create-ticket: Create a HubSpot ticket from a JSON object of ticket properties
//
// Both tools return the HubSpot response body unchanged as a single text
// content item. Upstream failures are reported as tool results with
// isError set, so the client sees HubSpot's own error payload.
//
// # Server Construction
//
// NewServer builds a *server.MCPServer with tool capabilities, panic
// recovery and an observing middleware that logs every call and forwards
// a CallRecord to each configured Recorder (metrics, audit log).
package tools
