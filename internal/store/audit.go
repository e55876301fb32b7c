// ABOUTME: Tool call audit records and the store methods that write and query them
// ABOUTME: Records which tool ran, for which session, how it ended and what HubSpot answered

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeFormat sorts lexicographically in the same order as time.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ToolCall is a single audit log entry.
type ToolCall struct {
	ID             string        // UUID v4
	SessionID      string        // MCP session, empty in stateless mode
	Tool           string        // tool name
	Outcome        string        // success, tool_error or error
	UpstreamStatus int           // HubSpot HTTP status, 0 when not reached
	Duration       time.Duration // stored with millisecond precision
	Error          string        // error text for failed calls
	CreatedAt      time.Time
}

// ToolCallFilter specifies filtering options for listing tool calls.
type ToolCallFilter struct {
	Tool  string    // exact tool name, empty for all
	Since time.Time // calls at or after this time, zero for all
	Limit int       // max results (default 100, max 1000)
}

// RecordToolCall appends a tool call to the audit log.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, c *ToolCall) error {
	if c.Tool == "" || c.Outcome == "" {
		return fmt.Errorf("%w: tool and outcome are required", ErrInvalidToolCall)
	}

	// Generate ID if not set
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	// Generate timestamp if not set
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_calls (id, session_id, tool, outcome, upstream_status, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.SessionID,
		c.Tool,
		c.Outcome,
		c.UpstreamStatus,
		c.Duration.Milliseconds(),
		nullString(c.Error),
		c.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", c.ID,
		"tool", c.Tool,
		"outcome", c.Outcome,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const toolCallsQuery = `
	SELECT id, session_id, tool, outcome, upstream_status, duration_ms, error, created_at
	FROM tool_calls
	WHERE (? IS NULL OR tool = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC, id DESC
	LIMIT ?
`

// ListToolCalls returns tool calls matching the filter.
// Results are returned newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	var sinceStr *string
	if !f.Since.IsZero() {
		str := f.Since.UTC().Format(timeFormat)
		sinceStr = &str
	}
	tool := nullString(f.Tool)

	rows, err := s.db.QueryContext(ctx, toolCallsQuery,
		tool, tool,
		sinceStr, sinceStr,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	calls := []ToolCall{}
	for rows.Next() {
		c, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return calls, nil
}

// scanToolCall scans a row into a ToolCall.
func scanToolCall(scanner interface{ Scan(dest ...any) error }) (ToolCall, error) {
	var c ToolCall
	var durationMS int64
	var errText sql.NullString
	var createdStr string

	if err := scanner.Scan(
		&c.ID,
		&c.SessionID,
		&c.Tool,
		&c.Outcome,
		&c.UpstreamStatus,
		&durationMS,
		&errText,
		&createdStr,
	); err != nil {
		return c, fmt.Errorf("scanning tool call: %w", err)
	}

	c.Duration = time.Duration(durationMS) * time.Millisecond
	c.Error = errText.String

	var err error
	c.CreatedAt, err = time.Parse(timeFormat, createdStr)
	if err != nil {
		return c, fmt.Errorf("parsing timestamp: %w", err)
	}
	return c, nil
}
