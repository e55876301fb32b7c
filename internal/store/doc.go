// Package store provides the tool call audit log, persisted in SQLite.
//
// Every MCP tool invocation can be written as a ToolCall: which tool ran,
// for which session, how it ended (success, tool_error or error), the
// HubSpot status it received and how long it took. The audit CLI command
// reads the same table back with ListToolCalls.
//
// SQLiteStore uses the pure Go modernc.org/sqlite driver. A path of
// ":memory:" opens a private in-memory database restricted to a single
// connection; file databases run in WAL mode.
package store
