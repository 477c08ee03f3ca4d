// Package resources implements the read-only resource://... projections
// (§6.3): one file per URI host, each exposing a small type that satisfies
// mcp.Resource. Like internal/tools, these are thin adapters over
// internal/store with no business logic of their own.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Deps is the shared collaborator every resource is constructed with.
type Deps struct {
	Store *store.Store
}

func jsonContent(uri string, v any) (*mcp.ResourcesReadResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource content: %w", err)
	}
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{{
			URI:      uri,
			MimeType: "application/json",
			Text:     string(b),
		}},
	}, nil
}

// pathSegments splits u.Path into its non-empty slash-delimited parts, e.g.
// "/urgent-unread/nimble-otter" -> ["urgent-unread", "nimble-otter"].
func pathSegments(u *url.URL) []string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(u *url.URL, key string, def int64) int64 {
	raw := u.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queryBool(u *url.URL, key string, def bool) bool {
	raw := u.Query().Get(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// resolveProject mirrors internal/tools's helper of the same name: a
// project_key may be either a slug or the original human_key.
func (d *Deps) resolveProject(ctx context.Context, key string) (store.Project, error) {
	if key == "" {
		return store.Project{}, apperr.New(apperr.Validation, "project is required")
	}
	if p, err := d.Store.ProjectBySlug(ctx, key); err == nil {
		return p, nil
	}
	p, err := d.Store.ProjectByHumanKey(ctx, key)
	if err != nil {
		return store.Project{}, apperr.Wrap(apperr.NotFound, err, "unknown project %q", key)
	}
	return p, nil
}

// resolveAgent resolves an agent by name within a project named by
// ?project, or, when project is omitted, across every project the name
// appears in exactly once (§6.3's "resolve only if agent is unambiguous
// project-wide").
func (d *Deps) resolveAgent(ctx context.Context, u *url.URL, name string) (store.Agent, error) {
	if projectKey := u.Query().Get("project"); projectKey != "" {
		project, err := d.resolveProject(ctx, projectKey)
		if err != nil {
			return store.Agent{}, err
		}
		a, err := d.Store.AgentByName(ctx, project.ID, name)
		if err != nil {
			return store.Agent{}, apperr.Wrap(apperr.NotFound, err, "agent %q not found in project %q", name, projectKey)
		}
		return a, nil
	}

	matches, err := d.Store.AgentsByNameAnyProject(ctx, name)
	if err != nil {
		return store.Agent{}, err
	}
	switch len(matches) {
	case 0:
		return store.Agent{}, apperr.New(apperr.NotFound, "agent %q not found", name)
	case 1:
		return matches[0], nil
	default:
		return store.Agent{}, apperr.New(apperr.Validation, "agent %q is ambiguous across projects; pass ?project", name)
	}
}
