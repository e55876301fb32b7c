// ABOUTME: Store interface for the tool call audit log
// ABOUTME: Implemented by SQLiteStore

package store

import (
	"context"
	"errors"
)

// ErrInvalidToolCall is returned when a ToolCall is missing required fields.
var ErrInvalidToolCall = errors.New("invalid tool call")

// Store persists and queries tool call audit records.
type Store interface {
	RecordToolCall(ctx context.Context, c *ToolCall) error
	ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
