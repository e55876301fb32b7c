// ABOUTME: tools command that prints the MCP tool catalog
// ABOUTME: Shows each tool's description, annotations and JSON input schema

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/tools"
)

func runTools(w io.Writer) error {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	for i, t := range tools.Catalog(nil) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		bold.Fprintln(w, t.Tool.Name)
		fmt.Fprintf(w, "  %s\n", t.Tool.Description)
		if t.Tool.Annotations.ReadOnlyHint != nil && *t.Tool.Annotations.ReadOnlyHint {
			gray.Fprintln(w, "  read-only")
		}

		schema, err := json.MarshalIndent(t.Tool.InputSchema, "  ", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s schema: %w", t.Tool.Name, err)
		}
		fmt.Fprintf(w, "  %s\n", schema)
	}
	return nil
}
