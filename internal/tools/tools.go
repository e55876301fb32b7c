// ABOUTME: MCP tool definitions and handlers for the HubSpot tickets API.
// ABOUTME: list-tickets and create-ticket return HubSpot bodies unchanged.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/hubspot"
)

// Tool names.
const (
	ListTicketsName  = "list-tickets"
	CreateTicketName = "create-ticket"
)

// InvalidTicketInputMessage is reported when create-ticket receives no JSON object.
const InvalidTicketInputMessage = "Input must be a JSON object of ticket properties."

// Backend is the subset of the HubSpot client the tools call.
type Backend interface {
	ListTickets(ctx context.Context, opts hubspot.ListOptions) (json.RawMessage, error)
	CreateTicket(ctx context.Context, input map[string]any) (json.RawMessage, error)
}

type handlers struct {
	backend Backend
}

// Catalog returns every tool bound to backend.
func Catalog(backend Backend) []server.ServerTool {
	h := &handlers{backend: backend}
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ListTicketsName,
				mcp.WithDescription("List HubSpot tickets"),
				mcp.WithTitleAnnotation("List tickets"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of tickets to return"),
					mcp.Min(1),
					mcp.Max(hubspot.MaxListLimit),
				),
				mcp.WithString("after",
					mcp.Description("Paging cursor from a previous response (paging.next.after)"),
				),
				mcp.WithString("properties",
					mcp.Description("Comma separated ticket properties to include"),
				),
				mcp.WithBoolean("archived",
					mcp.Description("Return archived tickets only"),
				),
			),
			Handler: h.ListTickets,
		},
		{
			Tool: mcp.NewTool(CreateTicketName,
				mcp.WithDescription("Create a HubSpot ticket. Input is a JSON object of ticket properties."),
				mcp.WithTitleAnnotation("Create ticket"),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithObject("input",
					mcp.Required(),
					mcp.Description(`Request body for HubSpot, e.g. {"properties":{"subject":"...","hs_pipeline":"0","hs_pipeline_stage":"1"}}`),
				),
			),
			Handler: h.CreateTicket,
		},
	}
}

// Register adds every tool to srv.
func Register(srv *server.MCPServer, backend Backend) {
	srv.AddTools(Catalog(backend)...)
}

// ListTickets handles list-tickets.
func (h *handlers) ListTickets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := hubspot.ListOptions{
		Limit:      req.GetInt("limit", 0),
		After:      req.GetString("after", ""),
		Properties: splitProperties(req.GetString("properties", "")),
		Archived:   req.GetBool("archived", false),
	}
	if err := opts.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := h.backend.ListTickets(ctx, opts)
	return bodyResult(ctx, body, err, http.StatusOK)
}

// CreateTicket handles create-ticket.
func (h *handlers) CreateTicket(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, ok := req.GetArguments()["input"].(map[string]any)
	if !ok || input == nil {
		return mcp.NewToolResultError(InvalidTicketInputMessage), nil
	}

	body, err := h.backend.CreateTicket(ctx, input)
	return bodyResult(ctx, body, err, http.StatusCreated)
}

// bodyResult turns a HubSpot response into a tool result.
// okStatus is the status HubSpot documents for a successful call.
func bodyResult(ctx context.Context, body json.RawMessage, err error, okStatus int) (*mcp.CallToolResult, error) {
	if err != nil {
		setUpstreamStatus(ctx, hubspot.StatusCode(err))
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	setUpstreamStatus(ctx, okStatus)
	return mcp.NewToolResultText(string(body)), nil
}

func splitProperties(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
