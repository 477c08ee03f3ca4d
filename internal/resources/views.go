package resources

import (
	"context"
	"net/url"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Views implements the three resource://views/... projections, dispatched
// by path since the registry keys resources by scheme host alone
// ("views"), not by full path.
type Views struct {
	Deps *Deps
}

func (r *Views) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://views/{view}/{agent}",
		Name:        "views",
		Description: "Canned agent-centric views: urgent-unread, ack-required, ack-overdue.",
		MimeType:    "application/json",
	}
}

func (r *Views) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	ctx := context.Background()
	segs := pathSegments(u)
	if len(segs) != 2 {
		return nil, apperr.New(apperr.Validation, "resource://views/{view}/{agent} requires a view and an agent")
	}
	view, agentName := segs[0], segs[1]

	agent, err := r.Deps.resolveAgent(ctx, u, agentName)
	if err != nil {
		return nil, err
	}
	limit := int(queryInt(u, "limit", 20))

	switch view {
	case "urgent-unread":
		msgs, err := r.Deps.Store.Inbox(ctx, agent.ID, store.InboxFilter{
			UnreadOnly: true,
			UrgentOnly: true,
			Limit:      limit,
		})
		if err != nil {
			return nil, err
		}
		return jsonContent(u.String(), msgs)

	case "ack-required":
		msgs, err := r.Deps.Store.Inbox(ctx, agent.ID, store.InboxFilter{
			AckRequired: true,
			Limit:       limit,
		})
		if err != nil {
			return nil, err
		}
		return jsonContent(u.String(), msgs)

	case "ack-overdue":
		ttlMinutes := queryInt(u, "ttl_minutes", 60)
		olderThan := time.Now().Add(-time.Duration(ttlMinutes) * time.Minute).Unix()
		recipients, err := r.Deps.Store.OverdueAcks(ctx, agent.ProjectID, olderThan)
		if err != nil {
			return nil, err
		}

		out := make([]store.Message, 0, limit)
		for _, rec := range recipients {
			if rec.AgentID != agent.ID {
				continue
			}
			msg, err := r.Deps.Store.MessageByID(ctx, rec.MessageID)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return jsonContent(u.String(), out)

	default:
		return nil, apperr.New(apperr.Validation, "unknown view %q", view)
	}
}
