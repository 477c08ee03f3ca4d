package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Project implements resource://project/{slug} — a project header plus its
// registered agents.
type Project struct {
	Deps *Deps
}

func (r *Project) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://project/{slug}",
		Name:        "project",
		Description: "Project header and registered agents.",
		MimeType:    "application/json",
	}
}

type projectView struct {
	store.Project
	Agents []store.Agent `json:"agents"`
	Builds []store.Build `json:"builds"`
}

func (r *Project) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://project/{slug} requires a slug")
	}

	project, err := r.Deps.resolveProject(ctx, segs[0])
	if err != nil {
		return nil, err
	}
	agents, err := r.Deps.Store.ListAgents(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	builds, err := r.Deps.Store.RecentBuilds(ctx, project.ID, int(queryInt(u, "builds_limit", 20)))
	if err != nil {
		return nil, err
	}
	return jsonContent(u.String(), projectView{Project: project, Agents: agents, Builds: builds})
}
