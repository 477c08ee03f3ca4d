package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/ids"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// RegisterAgent implements register_agent: resolves a unique agent name
// (honoring a hint when free) and persists the profile to both the Index
// Store and the Archive Filesystem Layer.
type RegisterAgent struct {
	Deps *Deps
}

func (t *RegisterAgent) Name() string { return "register_agent" }
func (t *RegisterAgent) Writer() bool { return true }
func (t *RegisterAgent) Description() string {
	return "Register a new agent in a project. If name_hint sanitizes to a free alnum name it is " +
		"used as-is; otherwise a memorable adjective+noun name is generated."
}

func (t *RegisterAgent) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project"],
  "properties": {
    "project": {"type": "string"},
    "name_hint": {"type": "string"},
    "program": {"type": "string"},
    "model": {"type": "string"},
    "task": {"type": "string"},
    "attachments_policy": {"type": "string", "enum": ["auto", "file", "inline"]},
    "contact_policy": {"type": "string", "enum": ["open", "auto", "contacts_only", "block_all"]}
  }
}`)
}

type registerAgentParams struct {
	Project           string `json:"project"`
	NameHint          string `json:"name_hint,omitempty"`
	Program           string `json:"program,omitempty"`
	Model             string `json:"model,omitempty"`
	Task              string `json:"task,omitempty"`
	AttachmentsPolicy string `json:"attachments_policy,omitempty"`
	ContactPolicy     string `json:"contact_policy,omitempty"`
}

func (t *RegisterAgent) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p registerAgentParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}

	name, err := ids.UniqueAgentName(p.NameHint, func(candidate string) (bool, error) {
		return t.Deps.Store.AgentNameTaken(ctx, project.ID, candidate)
	})
	if err != nil {
		return result(err)
	}

	agent, err := t.Deps.Store.RegisterAgent(ctx, store.Agent{
		ProjectID:         project.ID,
		Name:              name,
		Program:           p.Program,
		Model:             p.Model,
		Task:              p.Task,
		AttachmentsPolicy: p.AttachmentsPolicy,
		ContactPolicy:     p.ContactPolicy,
	})
	if err != nil {
		return result(err)
	}

	tree := t.Deps.tree(project.Slug)
	if _, err := tree.WriteProfile(archive.ProfileArtifact{
		Name:              agent.Name,
		Program:           agent.Program,
		Model:             agent.Model,
		Task:              agent.Task,
		AttachmentsPolicy: agent.AttachmentsPolicy,
		ContactPolicy:     agent.ContactPolicy,
		InceptionTs:       agent.InceptionTs,
		LastActiveTs:      agent.LastActiveTs,
	}); err != nil {
		return result(err)
	}

	return mcp.JSONResult(agent)
}

// Whois implements whois: resolve an agent by name within a project and
// report its profile plus recency.
type Whois struct {
	Deps *Deps
}

func (t *Whois) Name() string        { return "whois" }
func (t *Whois) Writer() bool        { return false }
func (t *Whois) Description() string { return "Look up a registered agent's profile by name." }

func (t *Whois) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "agent"],
  "properties": {
    "project": {"type": "string"},
    "agent": {"type": "string"}
  }
}`)
}

type whoisParams struct {
	Project string `json:"project"`
	Agent   string `json:"agent"`
}

func (t *Whois) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p whoisParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	agent, err := t.Deps.resolveAgent(ctx, project.ID, p.Agent)
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(agent)
}
