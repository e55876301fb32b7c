// ABOUTME: audit command that prints recent tool calls from the SQLite audit log
// ABOUTME: Supports --tool, --limit, --since and --db flags

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/config"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/store"
)

func runAudit(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	tool := fs.String("tool", "", "only show calls to this tool")
	limit := fs.Int("limit", 20, "maximum number of calls to show")
	since := fs.Duration("since", 0, "only show calls newer than this (e.g. 1h)")
	dbPath := fs.String("db", "", "audit database path (defaults to audit.path from the config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	path := *dbPath
	if path == "" {
		cfg, err := config.LoadOrEnv(config.Path())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.Audit.Path
	}
	if path == "" {
		return errors.New("audit log is disabled: set audit.path in the config or pass --db")
	}
	if path != store.MemoryPath {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
	}

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer s.Close()

	filter := store.ToolCallFilter{Tool: *tool, Limit: *limit}
	if *since > 0 {
		filter.Since = time.Now().Add(-*since)
	}

	calls, err := s.ListToolCalls(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing tool calls: %w", err)
	}

	printToolCalls(w, calls)
	return nil
}

// printToolCalls writes calls as an aligned table, newest first.
func printToolCalls(w io.Writer, calls []store.ToolCall) {
	if len(calls) == 0 {
		fmt.Fprintln(w, "no tool calls recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tOUTCOME\tSTATUS\tDURATION\tSESSION\tERROR")
	for _, c := range calls {
		status := "-"
		if c.UpstreamStatus > 0 {
			status = fmt.Sprintf("%d", c.UpstreamStatus)
		}
		session := c.SessionID
		if session == "" {
			session = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.CreatedAt.Local().Format(time.DateTime),
			c.Tool,
			outcomeString(c.Outcome),
			status,
			c.Duration,
			session,
			truncate(c.Error, 60),
		)
	}
	_ = tw.Flush()
}

func outcomeString(outcome string) string {
	switch outcome {
	case "success":
		return color.GreenString(outcome)
	case "tool_error":
		return color.YellowString(outcome)
	default:
		return color.RedString(outcome)
	}
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	end := 0
	for range n - 3 {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[:end] + "..."
}
