package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// Projects implements resource://projects — a flat list of every project.
type Projects struct {
	Deps *Deps
}

func (r *Projects) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://projects",
		Name:        "projects",
		Description: "List every archived project.",
		MimeType:    "application/json",
	}
}

func (r *Projects) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	projects, err := r.Deps.Store.ListProjects(context.Background())
	if err != nil {
		return nil, err
	}
	return jsonContent(u.String(), projects)
}
