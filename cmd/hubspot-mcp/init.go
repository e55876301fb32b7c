// ABOUTME: init command that writes a commented starter config file
// ABOUTME: Prompts for each value with a default; EOF accepts every default

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/config"
)

// initOptions are the answers collected by runInit.
type initOptions struct {
	HTTPAddr    string
	Transport   string
	AuditPath   string
	LogLevel    string
	LogFormat   string
	Metrics     bool
	Tailscale   bool
	TSHostname  string
	TSFunnel    bool
	RequireAuth bool
}

// getDataPath returns the path to the hubspot-mcp data directory.
// Priority: XDG_DATA_HOME/hubspot-mcp > ~/.local/share/hubspot-mcp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "hubspot-mcp")
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("hubspot-mcp configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.Path())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	opts := initOptions{}

	fmt.Println("\n--- Server Configuration ---")
	opts.HTTPAddr = prompt(reader, "HTTP address", ":"+config.DefaultPort)
	opts.Transport = prompt(reader, "MCP transport (sessions/sdk/stateless)", config.TransportSessions)
	opts.RequireAuth = yes(prompt(reader, "Require a bearer token on /mcp (read from MCP_AUTH_TOKEN)?", "no"))

	fmt.Println("\n--- Audit Log ---")
	opts.AuditPath = prompt(reader, "SQLite audit database (empty to disable)", filepath.Join(getDataPath(), "audit.db"))

	fmt.Println("\n--- Tailscale Configuration ---")
	opts.Tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if opts.Tailscale {
		opts.TSHostname = prompt(reader, "Tailscale hostname", "hubspot-mcp")
		opts.TSFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging and Metrics ---")
	opts.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	opts.LogFormat = prompt(reader, "Log format (text/json)", "text")
	opts.Metrics = yes(prompt(reader, "Expose Prometheus metrics?", "no"))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(opts)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  export %s=pat-...\n", config.EnvHubSpotToken)
	fmt.Println("  hubspot-mcp serve")

	return nil
}

// renderConfig produces the YAML config file for opts.
func renderConfig(opts initOptions) string {
	var b strings.Builder
	b.WriteString("# hubspot-mcp configuration\n")
	b.WriteString("# Generated by hubspot-mcp init\n\n")

	b.WriteString("server:\n")
	if !opts.Tailscale {
		fmt.Fprintf(&b, "  http_addr: %q\n", opts.HTTPAddr)
	}
	b.WriteString("  # base_url: \"https://mcp.example.com\"\n\n")

	b.WriteString("hubspot:\n")
	b.WriteString("  # Private app token; keep it in the environment, not in this file\n")
	fmt.Fprintf(&b, "  access_token: \"${%s}\"\n", config.EnvHubSpotToken)
	fmt.Fprintf(&b, "  timeout: %q\n", config.DefaultRequestTimeout.String())
	b.WriteString("  # Requests per second to HubSpot; a negative value turns limiting off\n")
	fmt.Fprintf(&b, "  rate_limit: %g\n", config.DefaultRateLimit)
	fmt.Fprintf(&b, "  rate_burst: %d\n", config.DefaultRateBurst)
	b.WriteString("  # Cache list-tickets responses; created tickets invalidate the cache\n")
	b.WriteString("  # list_cache_ttl: \"30s\"\n\n")

	b.WriteString("mcp:\n")
	fmt.Fprintf(&b, "  path: %q\n", config.DefaultMCPPath)
	fmt.Fprintf(&b, "  transport: %q\n", opts.Transport)
	fmt.Fprintf(&b, "  session_idle_timeout: %q\n", "30m")
	fmt.Fprintf(&b, "  heartbeat_interval: %q\n\n", "30s")

	if opts.RequireAuth {
		b.WriteString("auth:\n")
		fmt.Fprintf(&b, "  bearer_token: \"${%s}\"\n\n", config.EnvAuthToken)
	}

	b.WriteString("audit:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", opts.AuditPath)

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", opts.Tailscale)
	if opts.Tailscale {
		fmt.Fprintf(&b, "  hostname: %q\n", opts.TSHostname)
		fmt.Fprintf(&b, "  funnel: %t\n", opts.TSFunnel)
		b.WriteString("  # auth_key defaults to $TS_AUTHKEY\n")
	}
	b.WriteString("\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", opts.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n\n", opts.LogFormat)

	b.WriteString("metrics:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", opts.Metrics)
	fmt.Fprintf(&b, "  path: %q\n", config.DefaultMetricsPath)

	return b.String()
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	return promptTo(os.Stdout, reader, question, defaultVal)
}

func promptTo(w io.Writer, reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(w, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(w, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(w)
		if s := strings.TrimSpace(input); s != "" {
			return s
		}
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
