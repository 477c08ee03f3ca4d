package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// Thread implements resource://thread/{thread_id}{?project,include_bodies}.
type Thread struct {
	Deps *Deps
}

func (r *Thread) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://thread/{thread_id}",
		Name:        "thread",
		Description: "Every message in a thread, oldest first.",
		MimeType:    "application/json",
	}
}

func (r *Thread) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://thread/{thread_id} requires a thread id")
	}
	projectKey := u.Query().Get("project")
	if projectKey == "" {
		return nil, apperr.New(apperr.Validation, "resource://thread/{thread_id} requires ?project")
	}
	project, err := r.Deps.resolveProject(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	msgs, err := r.Deps.Store.ThreadMessages(ctx, project.ID, segs[0])
	if err != nil {
		return nil, err
	}
	if !queryBool(u, "include_bodies", true) {
		for i := range msgs {
			msgs[i].BodyMD = ""
		}
	}
	return jsonContent(u.String(), msgs)
}
