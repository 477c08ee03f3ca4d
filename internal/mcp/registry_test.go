package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
)

type stubTool struct {
	name    string
	writer  bool
	execErr error
}

func (t *stubTool) Name() string                  { return t.name }
func (t *stubTool) Description() string           { return "stub" }
func (t *stubTool) InputSchema() json.RawMessage   { return json.RawMessage(`{}`) }
func (t *stubTool) Writer() bool                   { return t.writer }
func (t *stubTool) Execute(_ context.Context, _ json.RawMessage) (*ToolsCallResult, error) {
	if t.execErr != nil {
		return nil, t.execErr
	}
	return &ToolsCallResult{Content: []ContentBlock{TextContent("ok")}}, nil
}

func TestRegistry_CallEnforcesWriterRole(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "send_message", writer: true})

	if _, err := r.Call(context.Background(), "send_message", nil, false); err == nil {
		t.Fatal("expected a writer-only tool to refuse a reader caller")
	}
	var writerErr *ErrWriterRequired
	if _, err := r.Call(context.Background(), "send_message", nil, false); !errors.As(err, &writerErr) {
		t.Fatalf("expected ErrWriterRequired, got %v", err)
	}

	if _, err := r.Call(context.Background(), "send_message", nil, true); err != nil {
		t.Fatalf("expected writer caller to succeed, got %v", err)
	}
}

func TestRegistry_TracksCallAndErrorCounts(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "health_check"})
	r.Register(&stubTool{name: "broken", execErr: errors.New("boom")})

	if _, err := r.Call(context.Background(), "health_check", nil, true); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Call(context.Background(), "broken", nil, true); err == nil {
		t.Fatal("expected broken tool to error")
	}

	stats := r.Stats()
	byName := make(map[string]ToolCallStats)
	for _, s := range stats {
		byName[s.Name] = s
	}
	if byName["health_check"].Calls != 1 || byName["health_check"].Errors != 0 {
		t.Errorf("unexpected health_check stats: %+v", byName["health_check"])
	}
	if byName["broken"].Calls != 1 || byName["broken"].Errors != 1 {
		t.Errorf("unexpected broken stats: %+v", byName["broken"])
	}

	recent := r.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent entries, got %d", len(recent))
	}
	if recent[1].Error == "" {
		t.Error("expected the broken call's recent entry to carry its error")
	}
}

type stubResource struct{ uri string }

func (r *stubResource) Definition() ResourceDefinition {
	return ResourceDefinition{URI: r.uri, Name: "stub"}
}
func (r *stubResource) Read(u *url.URL) (*ResourcesReadResult, error) {
	return &ResourcesReadResult{Contents: []ResourceContent{{URI: u.String(), Text: u.RawQuery}}}, nil
}

func TestRegistry_ResourceRoutingByHost(t *testing.T) {
	r := NewRegistry()
	r.RegisterResource(&stubResource{uri: "resource://inbox/{agent}"})

	res, parsed, err := r.GetResource("resource://inbox/GreenCastle?project=proj&limit=10")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected inbox resource to be found")
	}
	out, err := res.Read(parsed)
	if err != nil {
		t.Fatal(err)
	}
	if out.Contents[0].Text != "project=proj&limit=10" {
		t.Errorf("expected query string preserved, got %q", out.Contents[0].Text)
	}
}

func TestRegistry_UnknownResourceReturnsNil(t *testing.T) {
	r := NewRegistry()
	res, _, err := r.GetResource("resource://nope/x")
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatal("expected no resource to claim an unregistered host")
	}
}
