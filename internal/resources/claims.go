package resources

import (
	"context"
	"net/url"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// Claims implements resource://claims/{slug}{?active_only}.
type Claims struct {
	Deps *Deps
}

func (r *Claims) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://claims/{slug}",
		Name:        "claims",
		Description: "File reservations held in a project.",
		MimeType:    "application/json",
	}
}

func (r *Claims) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://claims/{slug} requires a slug")
	}
	project, err := r.Deps.resolveProject(ctx, segs[0])
	if err != nil {
		return nil, err
	}

	if queryBool(u, "active_only", true) {
		reservations, err := r.Deps.Store.ActiveReservations(ctx, project.ID, time.Now().Unix())
		if err != nil {
			return nil, err
		}
		return jsonContent(u.String(), reservations)
	}
	reservations, err := r.Deps.Store.AllReservations(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return jsonContent(u.String(), reservations)
}
