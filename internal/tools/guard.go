package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/guardhook"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// InstallPrecommitGuard implements install_precommit_guard: writes a
// pre-commit hook into the caller's repo that refuses commits touching
// paths exclusively reserved by another agent.
type InstallPrecommitGuard struct {
	Deps *Deps
}

func (t *InstallPrecommitGuard) Name() string { return "install_precommit_guard" }
func (t *InstallPrecommitGuard) Writer() bool { return true }
func (t *InstallPrecommitGuard) Description() string {
	return "Install a pre-commit hook in a git repo that rejects commits touching another agent's " +
		"exclusive reservation. Backs up any pre-existing foreign hook."
}

func (t *InstallPrecommitGuard) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "repo_root"],
  "properties": {
    "project": {"type": "string"},
    "repo_root": {"type": "string"}
  }
}`)
}

type installGuardParams struct {
	Project  string `json:"project"`
	RepoRoot string `json:"repo_root"`
}

func (t *InstallPrecommitGuard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p installGuardParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	if p.RepoRoot == "" {
		return mcp.ErrorResult("repo_root must be non-empty"), nil
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	claimsDir := t.Deps.tree(project.Slug).ClaimsDir()
	out, err := guardhook.Install(p.RepoRoot, claimsDir, project.Slug)
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(out)
}

// UninstallPrecommitGuard implements uninstall_precommit_guard.
type UninstallPrecommitGuard struct {
	Deps *Deps
}

func (t *UninstallPrecommitGuard) Name() string { return "uninstall_precommit_guard" }
func (t *UninstallPrecommitGuard) Writer() bool { return true }
func (t *UninstallPrecommitGuard) Description() string {
	return "Remove a previously installed pre-commit guard, restoring any backed-up foreign hook."
}

func (t *UninstallPrecommitGuard) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["repo_root"],
  "properties": {
    "repo_root": {"type": "string"}
  }
}`)
}

type uninstallGuardParams struct {
	RepoRoot string `json:"repo_root"`
}

func (t *UninstallPrecommitGuard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p uninstallGuardParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	if p.RepoRoot == "" {
		return mcp.ErrorResult("repo_root must be non-empty"), nil
	}
	if err := guardhook.Uninstall(p.RepoRoot); err != nil {
		return result(err)
	}
	return mcp.JSONResult(map[string]bool{"ok": true})
}
