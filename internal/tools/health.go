package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// HealthCheck implements health_check: reports database reachability and
// per-verb call/error counters from the tool registry. Registry is wired
// in by cmd/agentmail after both the registry and this tool exist, since
// the registry must already hold every other tool's stats by the time
// health_check itself is registered.
type HealthCheck struct {
	Deps     *Deps
	Registry *mcp.Registry
}

func (t *HealthCheck) Name() string        { return "health_check" }
func (t *HealthCheck) Writer() bool        { return false }
func (t *HealthCheck) Description() string { return "Report server health and per-verb call statistics." }

func (t *HealthCheck) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

type healthCheckResult struct {
	DBOK  bool                `json:"db_ok"`
	Tools []mcp.ToolCallStats `json:"tools,omitempty"`
}

func (t *HealthCheck) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	out := healthCheckResult{DBOK: true}
	if err := t.Deps.Store.DB().PingContext(ctx); err != nil {
		out.DBOK = false
	}
	if t.Registry != nil {
		out.Tools = t.Registry.Stats()
	}
	return mcp.JSONResult(out)
}
