package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/ids"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// EnsureProject implements ensure_project: idempotent lookup-or-create by
// human_key, deriving slug via ids.Slugify when the project is new.
type EnsureProject struct {
	Deps *Deps
}

func (t *EnsureProject) Name() string        { return "ensure_project" }
func (t *EnsureProject) Writer() bool        { return true }
func (t *EnsureProject) Description() string {
	return "Look up a project by human_key (typically an absolute repo path), creating it " +
		"idempotently on first reference. A second call with the same human_key returns the " +
		"existing project untouched."
}

func (t *EnsureProject) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["human_key"],
  "properties": {
    "human_key": {"type": "string", "description": "Stable project identity, typically an absolute path"}
  }
}`)
}

type ensureProjectParams struct {
	HumanKey string `json:"human_key"`
}

func (t *EnsureProject) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p ensureProjectParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	if p.HumanKey == "" {
		return mcp.ErrorResult("human_key is required"), nil
	}

	slug := ids.Slugify(p.HumanKey)
	project, err := t.Deps.Store.EnsureProject(ctx, p.HumanKey, slug)
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(project)
}
