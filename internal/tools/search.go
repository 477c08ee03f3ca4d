package tools

import (
	"context"
	"encoding/json"

	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/search"
)

// SearchMessages implements search_messages, backed by the full-text index
// with a LIKE fallback for malformed queries.
type SearchMessages struct {
	Deps *Deps
}

func (t *SearchMessages) Name() string        { return "search_messages" }
func (t *SearchMessages) Writer() bool        { return false }
func (t *SearchMessages) Description() string { return "Full-text search over a project's archived messages." }

func (t *SearchMessages) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "query"],
  "properties": {
    "project": {"type": "string"},
    "query": {"type": "string"},
    "limit": {"type": "integer"},
    "scope": {"type": "string", "enum": ["both", "subject", "body"]},
    "order": {"type": "string", "enum": ["relevance", "recent"]}
  }
}`)
}

type searchMessagesParams struct {
	Project string `json:"project"`
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Order   string `json:"order,omitempty"`
}

func (t *SearchMessages) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p searchMessagesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	if p.Query == "" {
		return mcp.ErrorResult("query must be non-empty"), nil
	}
	scope := search.ScopeBoth
	switch p.Scope {
	case "", "both":
	case "subject":
		scope = search.ScopeSubject
	case "body":
		scope = search.ScopeBody
	default:
		return mcp.ErrorResult("scope must be one of both, subject, body"), nil
	}
	order := p.Order
	switch order {
	case "":
		order = "relevance"
	case "relevance", "recent":
	default:
		return mcp.ErrorResult("order must be one of relevance, recent"), nil
	}

	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	hits, err := search.Search(ctx, t.Deps.Store, project.ID, p.Query, limit, scope, order)
	if err != nil {
		return result(err)
	}
	return mcp.JSONResult(hits)
}

// SummarizeThread implements summarize_thread: a heuristic digest of every
// message in a thread.
type SummarizeThread struct {
	Deps *Deps
}

func (t *SummarizeThread) Name() string { return "summarize_thread" }
func (t *SummarizeThread) Writer() bool { return false }
func (t *SummarizeThread) Description() string {
	return "Produce a heuristic digest (participants, key points, action items) of a thread."
}

func (t *SummarizeThread) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "thread_id"],
  "properties": {
    "project": {"type": "string"},
    "thread_id": {"type": "string"}
  }
}`)
}

type summarizeThreadParams struct {
	Project  string `json:"project"`
	ThreadID string `json:"thread_id"`
}

func (t *SummarizeThread) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p summarizeThreadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}
	key := digestCacheKey(project.ID, p.ThreadID)
	if cached, ok := t.Deps.digests.Get(key); ok {
		return mcp.JSONResult(cached)
	}
	digest, err := search.SummarizeThread(ctx, t.Deps.Store, project.ID, p.ThreadID, search.NoopRefiner{})
	if err != nil {
		return result(err)
	}
	t.Deps.digests.Set(key, digest)
	return mcp.JSONResult(digest)
}

// SummarizeThreads implements summarize_threads: digests over several
// threads at once.
type SummarizeThreads struct {
	Deps *Deps
}

func (t *SummarizeThreads) Name() string { return "summarize_threads" }
func (t *SummarizeThreads) Writer() bool { return false }
func (t *SummarizeThreads) Description() string {
	return "Produce heuristic digests for several threads in one call."
}

func (t *SummarizeThreads) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "required": ["project", "thread_ids"],
  "properties": {
    "project": {"type": "string"},
    "thread_ids": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  }
}`)
}

type summarizeThreadsParams struct {
	Project   string   `json:"project"`
	ThreadIDs []string `json:"thread_ids"`
}

func (t *SummarizeThreads) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p summarizeThreadsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return badParams(err)
	}
	if len(p.ThreadIDs) == 0 {
		return mcp.ErrorResult("thread_ids must be non-empty"), nil
	}
	project, err := t.Deps.resolveProject(ctx, p.Project)
	if err != nil {
		return result(err)
	}

	digests := make([]search.Digest, 0, len(p.ThreadIDs))
	var uncached []string
	for _, id := range p.ThreadIDs {
		if cached, ok := t.Deps.digests.Get(digestCacheKey(project.ID, id)); ok {
			digests = append(digests, cached)
			continue
		}
		uncached = append(uncached, id)
	}
	if len(uncached) > 0 {
		fresh, err := search.SummarizeThreads(ctx, t.Deps.Store, project.ID, uncached, search.NoopRefiner{})
		if err != nil {
			return result(err)
		}
		for _, d := range fresh {
			t.Deps.digests.Set(digestCacheKey(project.ID, d.ThreadID), d)
			digests = append(digests, d)
		}
	}
	return mcp.JSONResult(digests)
}
