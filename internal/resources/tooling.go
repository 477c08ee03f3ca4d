package resources

import (
	"net/url"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
)

// Tooling implements the three resource://tooling/... introspection
// projections. Like Views, it dispatches on path segment since the
// registry keys resources by scheme host alone. Registry is wired in by
// cmd/agentmail once the registry itself exists.
type Tooling struct {
	Registry *mcp.Registry
}

func (r *Tooling) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "resource://tooling/{facet}",
		Name:        "tooling",
		Description: "Registry introspection: directory, metrics, recent.",
		MimeType:    "application/json",
	}
}

func (r *Tooling) Read(u *url.URL) (*mcp.ResourcesReadResult, error) {
	segs := pathSegments(u)
	if len(segs) != 1 {
		return nil, apperr.New(apperr.Validation, "resource://tooling/{facet} requires exactly one facet")
	}

	switch segs[0] {
	case "directory":
		dirs := struct {
			Tools     []mcp.ToolDefinition     `json:"tools"`
			Resources []mcp.ResourceDefinition `json:"resources"`
		}{
			Tools:     r.Registry.List(),
			Resources: r.Registry.ListResources(),
		}
		return jsonContent(u.String(), dirs)
	case "metrics":
		return jsonContent(u.String(), r.Registry.Stats())
	case "recent":
		return jsonContent(u.String(), r.Registry.Recent())
	default:
		return nil, apperr.New(apperr.Validation, "unknown tooling facet %q", segs[0])
	}
}
