// ABOUTME: Adapter that writes tool call records into the audit store
// ABOUTME: Failures are logged and never affect the tool result

package gateway

import (
	"context"
	"log/slog"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/store"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/tools"
)

// auditRecorder implements tools.Recorder on top of a store.Store.
type auditRecorder struct {
	store  store.Store
	logger *slog.Logger
}

var _ tools.Recorder = (*auditRecorder)(nil)

func (a *auditRecorder) RecordToolCall(ctx context.Context, rec tools.CallRecord) {
	// Record even when the client went away mid-call
	ctx = context.WithoutCancel(ctx)

	err := a.store.RecordToolCall(ctx, &store.ToolCall{
		SessionID:      rec.SessionID,
		Tool:           rec.Tool,
		Outcome:        rec.Outcome,
		UpstreamStatus: rec.UpstreamStatus,
		Duration:       rec.Duration,
		Error:          rec.Error,
	})
	if err != nil {
		a.logger.Error("failed to record tool call", "tool", rec.Tool, "error", err)
	}
}
