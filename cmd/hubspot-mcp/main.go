// ABOUTME: Entry point for hubspot-mcp, an MCP server for HubSpot tickets
// ABOUTME: Dispatches the serve, init, health, tools, audit and version commands

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/config"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/gateway"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _           _                     _
| |__  _   _| |__  ___ _ __   ___ | |_     _ __ ___   ___ _ __
| '_ \| | | | '_ \/ __| '_ \ / _ \| __|___| '_ ' _ \ / __| '_ \
| | | | |_| | |_) \__ \ |_) | (_) | ||_____| | | | | | (__| |_) |
|_| |_|\__,_|_.__/|___/ .__/ \___/ \__|    |_| |_| |_|\___| .__/
                      |_|                                 |_|
`

func usage() {
	fmt.Println("Usage: hubspot-mcp <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the MCP server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  health                         Check server health")
	fmt.Println("  tools                          List the MCP tools and their input schemas")
	fmt.Println("  audit [--tool NAME] [--limit N] Show recent tool calls from the audit log")
	fmt.Println("  version                        Print the version")
	fmt.Println()
	fmt.Println("Without a config file the server is configured from HUBSPOT_ACCESS_TOKEN and PORT.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "tools":
		err = runTools(os.Stdout)
	case "audit":
		err = runAudit(ctx, os.Args[2:], os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("hubspot-mcp %s\n", version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	source := configPath
	if _, err := os.Stat(configPath); err != nil {
		source = "environment"
	}

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", source)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("MCP:       %s (%s)\n", cfg.MCP.Path, cfg.MCP.Transport)
	green.Print("    ▶ ")
	fmt.Printf("HubSpot:   %s\n", cfg.HubSpot.BaseURL)
	if cfg.Audit.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Audit:     %s\n", cfg.Audit.Path)
	}
	if cfg.Auth.BearerToken == "" {
		yellow.Print("    ! ")
		fmt.Println("MCP endpoint is unauthenticated (set auth.bearer_token or MCP_AUTH_TOKEN)")
	}

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting hubspot-mcp",
		"config", source,
		"http_addr", cfg.Server.HTTPAddr,
		"transport", cfg.MCP.Transport,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// healthURL builds the /healthz URL for a configured server.
func healthURL(cfg *config.Config) string {
	if cfg.Server.BaseURL != "" {
		return strings.TrimRight(cfg.Server.BaseURL, "/") + "/healthz"
	}
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/healthz"
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrEnv(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(cfg), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
