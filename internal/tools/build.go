package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// RecordBuild implements record_build: appends a build/test run outcome to
// a project's history. Unlike messages and reservations this never touches
// the archive filesystem or git — it is a pure index-store row, queried
// back through the builds field of resource://project/{slug}.
type RecordBuild struct {
	Deps *Deps
}

func (t *RecordBuild) Name() string { return "record_build" }
func (t *RecordBuild) Writer() bool { return true }
func (t *RecordBuild) Description() string {
	return "Record the outcome of a build or test run for a project."
}

func (t *RecordBuild) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "status"],
  "properties": {
    "project": {"type": "string"},
    "status": {"type": "string", "enum": ["pass", "fail", "error"]},
    "summary": {"type": "object"}
  }
}`)
}

type recordBuildParams struct {
	Project string          `json:"project"`
	Status  string          `json:"status"`
	Summary json.RawMessage `json:"summary,omitempty"`
}

func (t *RecordBuild) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p recordBuildParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	switch p.Status {
	case "pass", "fail", "error":
	default:
		return mcp.ErrorResult("status must be one of pass, fail, error"), nil
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}

	summaryJSON := string(p.Summary)
	build, err := t.Deps.Store.RecordBuildStart(ctx, project.ID, summaryJSON)
	if err != nil {
		return result(err)
	}
	if err := t.Deps.Store.FinishBuild(ctx, build.ID, p.Status, summaryJSON); err != nil {
		return result(err)
	}
	build.Status = p.Status
	return mcp.JSONResult(build)
}
