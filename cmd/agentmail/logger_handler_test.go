package main

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestNewLogHandler_NonTerminalWriterIsJSON(t *testing.T) {
	var buf bytes.Buffer
	h := newLogHandler(&buf, slog.LevelInfo)
	slog.New(h).Info("hello")
	if got := buf.String(); got == "" || got[0] != '{' {
		t.Errorf("expected JSON output for a non-terminal writer, got %q", got)
	}
}

func TestIsInteractive_NonFileWriterIsFalse(t *testing.T) {
	var buf bytes.Buffer
	if isInteractive(&buf) {
		t.Error("a bytes.Buffer is never a terminal")
	}
}
