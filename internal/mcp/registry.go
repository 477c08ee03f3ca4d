package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Tool is the interface every verb (ensure_project, send_message, ...) must
// implement to be dispatchable via tools/call.
type Tool interface {
	// Name returns the tool name (e.g. "send_message", "claim_paths").
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// InputSchema returns the JSON Schema for the tool's parameters.
	InputSchema() json.RawMessage

	// Writer reports whether this verb mutates state. The transport signals
	// a reader/writer role per request; the registry refuses to execute a
	// writer tool for a reader-role caller.
	Writer() bool

	// Execute runs the tool with the given parameters and returns the result.
	Execute(ctx context.Context, params json.RawMessage) (*ToolsCallResult, error)
}

// Prompt is the interface for MCP prompts.
type Prompt interface {
	// Definition returns the prompt metadata (name, description, arguments).
	Definition() PromptDefinition

	// Get returns the prompt messages, optionally customized by arguments.
	Get(arguments map[string]string) (*PromptsGetResult, error)
}

// Resource is the interface for MCP resources. A single Resource instance
// may serve an entire family of concrete URIs sharing a scheme host (e.g.
// "resource://views/urgent-unread/{agent}" and "resource://views/ack-required/{agent}"
// both route to the "views" Resource); Read receives the fully parsed
// incoming URI so the implementation can inspect positional segments and
// query parameters itself.
type Resource interface {
	// Definition returns the resource metadata (URI template, name,
	// description, mimeType) used for resources/list.
	Definition() ResourceDefinition

	// Read returns the resource content for the concrete request URI.
	Read(u *url.URL) (*ResourcesReadResult, error)
}

// ToolCallStats is a snapshot of one tool's invocation counters, exposed via
// resource://tooling/metrics.
type ToolCallStats struct {
	Name   string `json:"name"`
	Calls  int64  `json:"calls"`
	Errors int64  `json:"errors"`
}

// RecentCall is one entry in the tooling/recent ring buffer.
type RecentCall struct {
	Name     string    `json:"name"`
	At       time.Time `json:"at"`
	Duration int64     `json:"duration_ms"`
	Error    string    `json:"error,omitempty"`
}

const recentCallBuffer = 200

// Registry holds all registered tools, prompts, and resources, and tracks
// per-tool call/error counters plus a bounded recent-usage ring buffer.
type Registry struct {
	mu            sync.RWMutex
	tools         map[string]Tool
	toolOrder     []string
	calls         map[string]int64
	errors        map[string]int64
	recent        []RecentCall
	recentNext    int

	prompts       map[string]Prompt
	promptOrder   []string

	resources     map[string]Resource // keyed by URI scheme host
	resourceOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		calls:     make(map[string]int64),
		errors:    make(map[string]int64),
		prompts:   make(map[string]Prompt),
		resources: make(map[string]Resource),
	}
}

// --- Tools ---

// Register adds a tool to the registry.
// Panics if a tool with the same name is already registered.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool %q already registered", name))
	}
	r.tools[name] = t
	r.toolOrder = append(r.toolOrder, name)
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tool definitions in registration order.
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		t := r.tools[name]
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// ErrWriterRequired is returned by Call when a reader-role caller invokes a
// writer verb.
type ErrWriterRequired struct{ Tool string }

func (e *ErrWriterRequired) Error() string {
	return fmt.Sprintf("tool %q requires writer role", e.Tool)
}

// Call executes a registered tool by name, enforcing the writer/reader
// role gate and recording call/error counters and the recent-usage ring
// buffer. Every tools/call dispatch — including a macro verb invoking
// another verb internally — must go through Call so the counters stay
// accurate.
func (r *Registry) Call(ctx context.Context, name string, params json.RawMessage, isWriter bool) (*ToolsCallResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	if tool.Writer() && !isWriter {
		return nil, &ErrWriterRequired{Tool: name}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, params)
	r.recordCall(name, start, err)
	return result, err
}

func (r *Registry) recordCall(name string, start time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls[name]++
	entry := RecentCall{Name: name, At: start, Duration: time.Since(start).Milliseconds()}
	if err != nil {
		r.errors[name]++
		entry.Error = err.Error()
	}

	if len(r.recent) < recentCallBuffer {
		r.recent = append(r.recent, entry)
	} else {
		r.recent[r.recentNext] = entry
		r.recentNext = (r.recentNext + 1) % recentCallBuffer
	}
}

// Stats returns a snapshot of every tool's call/error counters, in
// registration order.
func (r *Registry) Stats() []ToolCallStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolCallStats, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		out = append(out, ToolCallStats{Name: name, Calls: r.calls[name], Errors: r.errors[name]})
	}
	return out
}

// Recent returns the ring buffer's entries, oldest first.
func (r *Registry) Recent() []RecentCall {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.recent) < recentCallBuffer {
		out := make([]RecentCall, len(r.recent))
		copy(out, r.recent)
		return out
	}
	out := make([]RecentCall, 0, recentCallBuffer)
	out = append(out, r.recent[r.recentNext:]...)
	out = append(out, r.recent[:r.recentNext]...)
	return out
}

// --- Prompts ---

// RegisterPrompt adds a prompt to the registry.
// Panics if a prompt with the same name is already registered.
func (r *Registry) RegisterPrompt(p Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Definition().Name
	if _, exists := r.prompts[name]; exists {
		panic(fmt.Sprintf("prompt %q already registered", name))
	}
	r.prompts[name] = p
	r.promptOrder = append(r.promptOrder, name)
}

// GetPrompt returns a prompt by name, or nil if not found.
func (r *Registry) GetPrompt(name string) Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prompts[name]
}

// ListPrompts returns all registered prompt definitions in registration order.
func (r *Registry) ListPrompts() []PromptDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]PromptDefinition, 0, len(r.promptOrder))
	for _, name := range r.promptOrder {
		defs = append(defs, r.prompts[name].Definition())
	}
	return defs
}

// HasPrompts returns true if any prompts are registered.
func (r *Registry) HasPrompts() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prompts) > 0
}

// --- Resources ---

// RegisterResource adds a resource, keyed by its URI template's scheme host
// (e.g. "resource://inbox/{agent}" registers under "inbox").
// Panics if a resource with the same host is already registered, or if the
// template URI can't be parsed.
func (r *Registry) RegisterResource(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := resourceKey(res.Definition().URI)
	if err != nil {
		panic(fmt.Sprintf("resource %q has an invalid URI template: %v", res.Definition().URI, err))
	}
	if _, exists := r.resources[key]; exists {
		panic(fmt.Sprintf("resource %q already registered", key))
	}
	r.resources[key] = res
	r.resourceOrder = append(r.resourceOrder, key)
}

// GetResource returns the resource responsible for rawURI, or nil if no
// resource claims its scheme host.
func (r *Registry) GetResource(rawURI string) (Resource, *url.URL, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, nil, fmt.Errorf("parse resource uri: %w", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources[u.Host], u, nil
}

// ListResources returns all registered resource definitions in registration order.
func (r *Registry) ListResources() []ResourceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ResourceDefinition, 0, len(r.resourceOrder))
	for _, key := range r.resourceOrder {
		defs = append(defs, r.resources[key].Definition())
	}
	return defs
}

// HasResources returns true if any resources are registered.
func (r *Registry) HasResources() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources) > 0
}

func resourceKey(uriTemplate string) (string, error) {
	u, err := url.Parse(uriTemplate)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing scheme host in %q", uriTemplate)
	}
	return u.Host, nil
}
