package resources

import (
	"context"
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Inbox implements resource://inbox/{agent}{?project,since_ts,urgent_only,
// include_bodies,limit}.
type Inbox struct {
	Deps *Deps
}

func (r *Inbox) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://inbox/{agent}",
		Name:        "inbox",
		Description: "An agent's recent inbox messages.",
		MimeType:    "application/json",
	}
}

func (r *Inbox) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) == 0 {
		return nil, apperr.New(apperr.Validation, "resource://inbox/{agent} requires an agent name")
	}

	agent, err := r.Deps.resolveAgent(ctx, u, segs[0])
	if err != nil {
		return nil, err
	}

	limit := int(queryInt(u, "limit", 20))
	msgs, err := r.Deps.Store.Inbox(ctx, agent.ID, store.InboxFilter{
		UrgentOnly: queryBool(u, "urgent_only", false),
		SinceTs:    queryInt(u, "since_ts", 0),
		Limit:      limit,
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
