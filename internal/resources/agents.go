package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Agents implements resource://agents/{slug_or_human_key} — every agent in
// a project, annotated with its unread message count.
type Agents struct {
	Deps *Deps
}

func (r *Agents) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://agents/{slug_or_human_key}",
		Name:        "agents",
		Description: "Agents in a project with unread message counts.",
		MimeType:    "application/json",
	}
}

type agentView struct {
	store.Agent
	Unread int `json:"unread"`
}

func (r *Agents) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://agents/{slug_or_human_key} requires a key")
	}

	project, err := r.Deps.resolveProject(ctx, segs[0])
	if err != nil {
		return nil, err
	}
	agents, err := r.Deps.Store.ListAgents(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	unread, err := r.Deps.Store.UnreadCounts(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentView{Agent: a, Unread: unread[a.ID]})
	}
	return jsonContent(u.String(), out)
}
