package main

import (
	"io"
	"log/slog"
)

// newLogHandler picks a human-readable text handler when w is an
// interactive terminal, and JSON otherwise — JSON is what a process
// supervisor or log-aggregation pipeline expects, text is what a developer
// wants to read while running `agentmail serve` at a shell.
func newLogHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if isInteractive(w) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
