package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Outbox implements resource://outbox/{agent}{?project,limit,
// include_bodies,since_ts}.
type Outbox struct {
	Deps *Deps
}

func (r *Outbox) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://outbox/{agent}",
		Name:        "outbox",
		Description: "An agent's recently sent messages.",
		MimeType:    "application/json",
	}
}

func (r *Outbox) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://outbox/{agent} requires an agent name")
	}

	agent, err := r.Deps.resolveAgent(ctx, u, segs[0])
	if err != nil {
		return nil, err
	}

	limit := int(queryInt(u, "limit", 20))
	msgs, err := r.Deps.Store.Outbox(ctx, agent.ID, store.OutboxFilter{
		SinceTs: queryInt(u, "since_ts", 0),
		Limit:   limit,
	})
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
