// ABOUTME: Configuration loading and parsing for hubspot-mcp
// ABOUTME: Supports YAML and TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables read on top of (or instead of) the config file.
const (
	EnvHubSpotToken = "HUBSPOT_ACCESS_TOKEN"
	EnvPort         = "PORT"
	EnvAuthToken    = "MCP_AUTH_TOKEN"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvConfigPath   = "HUBSPOT_MCP_CONFIG"
)

// Transport modes for the MCP endpoint.
const (
	TransportSessions  = "sessions"
	TransportSDK       = "sdk"
	TransportStateless = "stateless"
)

// Defaults applied when a value is not configured.
const (
	DefaultPort               = "3000"
	DefaultMCPPath            = "/mcp"
	DefaultHubSpotBaseURL     = "https://api.hubapi.com"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultRateLimit          = 10.0
	DefaultRateBurst          = 10
	DefaultSessionIdleTimeout = 30 * time.Minute
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultMaxBodyBytes       = 1 << 20
	DefaultCacheMaxEntries    = 256
	DefaultMetricsPath        = "/metrics"
	DefaultServerName         = "hubspot-mcp"
	DefaultServerVersion      = "1.0.0"
)

// ErrMissingToken is returned when no HubSpot access token is configured.
var ErrMissingToken = errors.New("missing " + EnvHubSpotToken)

// Config represents the complete hubspot-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	HubSpot   HubSpotConfig   `yaml:"hubspot" toml:"hubspot"`
	MCP       MCPConfig       `yaml:"mcp" toml:"mcp"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Audit     AuditConfig     `yaml:"audit" toml:"audit"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// BaseURL is the externally reachable URL, shown on the landing page
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// HubSpotConfig holds the HubSpot API client configuration
type HubSpotConfig struct {
	AccessToken string  `yaml:"access_token" toml:"access_token"`
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	// RateLimit is requests per second. Zero selects DefaultRateLimit; a negative value disables limiting.
	RateLimit   float64 `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" toml:"rate_burst"`

	Timeout      time.Duration `yaml:"-" toml:"-"`
	ListCacheTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw      string `yaml:"timeout" toml:"timeout"`
	ListCacheTTLRaw string `yaml:"list_cache_ttl" toml:"list_cache_ttl"`

	ListCacheMaxEntries int `yaml:"list_cache_max_entries" toml:"list_cache_max_entries"`
}

// MCPConfig holds the MCP endpoint configuration
type MCPConfig struct {
	Path          string `yaml:"path" toml:"path"`
	Transport     string `yaml:"transport" toml:"transport"`
	ServerName    string `yaml:"server_name" toml:"server_name"`
	ServerVersion string `yaml:"server_version" toml:"server_version"`
	Instructions  string `yaml:"instructions" toml:"instructions"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`

	SessionIdleTimeout time.Duration `yaml:"-" toml:"-"`
	HeartbeatInterval  time.Duration `yaml:"-" toml:"-"`

	SessionIdleTimeoutRaw string `yaml:"session_idle_timeout" toml:"session_idle_timeout"`
	HeartbeatIntervalRaw  string `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
}

// AuthConfig holds the inbound authentication configuration
type AuthConfig struct {
	// BearerToken, when set, must be presented by MCP clients
	BearerToken string `yaml:"bearer_token" toml:"bearer_token"`
}

// AuditConfig holds the tool call audit log configuration
type AuditConfig struct {
	// Path of the SQLite database; empty disables auditing
	Path string `yaml:"path" toml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// The format is chosen from the file extension (.toml, otherwise YAML).
// Environment variables in the format ${VAR_NAME} are expanded, and the
// well-known variables (HUBSPOT_ACCESS_TOKEN, PORT, ...) override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(&cfg)
}

// FromEnv builds a configuration purely from environment variables and defaults.
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadOrEnv loads the file at path when it exists and falls back to FromEnv otherwise.
func LoadOrEnv(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}
	return FromEnv()
}

// Path returns the path to the config file.
// Priority: HUBSPOT_MCP_CONFIG env var > XDG_CONFIG_HOME/hubspot-mcp/config.yaml > ~/.config/hubspot-mcp/config.yaml
func Path() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hubspot-mcp", "config.yaml")
}

func finish(cfg *Config) (*Config, error) {
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets the deployment environment win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvHubSpotToken); v != "" {
		cfg.HubSpot.AccessToken = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Server.HTTPAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv(EnvAuthToken); v != "" {
		cfg.Auth.BearerToken = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" && !cfg.Tailscale.Enabled {
		cfg.Server.HTTPAddr = ":" + DefaultPort
	}

	hs := &cfg.HubSpot
	if hs.BaseURL == "" {
		hs.BaseURL = DefaultHubSpotBaseURL
	}
	hs.BaseURL = strings.TrimRight(hs.BaseURL, "/")
	if hs.Timeout == 0 {
		hs.Timeout = DefaultRequestTimeout
	}
	if hs.RateLimit == 0 {
		hs.RateLimit = DefaultRateLimit
	}
	if hs.RateBurst == 0 {
		hs.RateBurst = DefaultRateBurst
	}
	if hs.ListCacheMaxEntries == 0 {
		hs.ListCacheMaxEntries = DefaultCacheMaxEntries
	}

	m := &cfg.MCP
	if m.Path == "" {
		m.Path = DefaultMCPPath
	}
	if m.Transport == "" {
		m.Transport = TransportSessions
	}
	if m.ServerName == "" {
		m.ServerName = DefaultServerName
	}
	if m.ServerVersion == "" {
		m.ServerVersion = DefaultServerVersion
	}
	if m.MaxBodyBytes == 0 {
		m.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if m.SessionIdleTimeout == 0 {
		m.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	if m.HeartbeatInterval == 0 {
		m.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.HubSpot.AccessToken == "" {
		return ErrMissingToken
	}

	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.MCP.Transport {
	case TransportSessions, TransportSDK, TransportStateless:
	default:
		return fmt.Errorf("mcp.transport must be one of %q, %q, %q (got %q)",
			TransportSessions, TransportSDK, TransportStateless, c.MCP.Transport)
	}
	if !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path must start with '/' (got %q)", c.MCP.Path)
	}
	if c.MCP.MaxBodyBytes < 0 {
		return fmt.Errorf("mcp.max_body_bytes must not be negative")
	}

	if c.HubSpot.RateBurst < 0 {
		return fmt.Errorf("hubspot.rate_burst must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\" (got %q)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"hubspot.timeout", cfg.HubSpot.TimeoutRaw, &cfg.HubSpot.Timeout},
		{"hubspot.list_cache_ttl", cfg.HubSpot.ListCacheTTLRaw, &cfg.HubSpot.ListCacheTTL},
		{"mcp.session_idle_timeout", cfg.MCP.SessionIdleTimeoutRaw, &cfg.MCP.SessionIdleTimeout},
		{"mcp.heartbeat_interval", cfg.MCP.HeartbeatIntervalRaw, &cfg.MCP.HeartbeatInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative (got %q)", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
