package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Message implements resource://message/{id}{?project} — a message's full
// body plus its recipient fan-out.
type Message struct {
	Deps *Deps
}

func (r *Message) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://message/{id}",
		Name:        "message",
		Description: "A message's full body and recipients.",
		MimeType:    "application/json",
	}
}

type messageView struct {
	store.Message
	Recipients []store.Recipient `json:"recipients"`
}

func (r *Message) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://message/{id} requires a message id")
	}

	msg, err := r.Deps.Store.MessageByExternalID(ctx, segs[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, err, "message %s not found", segs[0])
	}
	if projectKey := u.Query().Get("project"); projectKey != "" {
		project, err := r.Deps.resolveProject(ctx, projectKey)
		if err != nil {
			return nil, err
		}
		if project.ID != msg.ProjectID {
			return nil, apperr.New(apperr.NotFound, "message %s not found in project %q", segs[0], projectKey)
		}
	}

	recipients, err := r.Deps.Store.Recipients(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	return jsonContent(u.String(), messageView{Message: msg, Recipients: recipients})
}
