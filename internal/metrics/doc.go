// Package metrics exposes Prometheus metrics for hubspot-mcp.
//
// A Metrics value is wired in three places: the HubSpot client reports
// each outbound request through ObserveUpstream, the tools middleware
// reports each tool call through RecordToolCall, and the session registry
// reports its size through SetActiveSessions. Handler serves everything
// from a private registry.
package metrics
