// Package config handles configuration loading for hubspot-mcp.
//
// # Overview
//
// Configuration comes from an optional YAML or TOML file plus environment
// variables. Without a file the service runs purely from the environment,
// which is how it is usually deployed next to an n8n instance.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HUBSPOT_MCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/hubspot-mcp/config.yaml
//  3. ~/.config/hubspot-mcp/config.yaml
//
// Files ending in .toml are decoded as TOML, everything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	hubspot:
//	  access_token: "${HUBSPOT_ACCESS_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
// HUBSPOT_ACCESS_TOKEN, PORT, MCP_AUTH_TOKEN, LOG_LEVEL and LOG_FORMAT
// always win over the file.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	mcp:
//	  session_idle_timeout: "30m"
//
// # Validation
//
// Load and FromEnv both call Validate. A missing HubSpot token yields
// ErrMissingToken.
package config
