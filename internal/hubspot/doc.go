// Package hubspot is a minimal client for the HubSpot CRM tickets API.
//
// Only two calls are modelled: listing tickets and creating a ticket.
// Response bodies are returned byte-for-byte so callers can hand them to
// MCP clients unchanged. Non-2xx responses surface as *APIError.
//
// Outbound requests pass through a token bucket limiter and report their
// duration and status to an optional Observer.
package hubspot
