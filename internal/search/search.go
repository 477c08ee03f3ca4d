// Package search implements project-scoped full-text search with a LIKE
// fallback, and heuristic thread digesting.
package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Scope narrows which fields a query matches against.
type Scope string

const (
	ScopeBoth    Scope = "both"
	ScopeSubject Scope = "subject"
	ScopeBody    Scope = "body"
)

// Hit is one search_messages result.
type Hit struct {
	Message store.Message
	Snippet string
}

var fieldQualifier = regexp.MustCompile(`(?i)^(subject|body):(.*)$`)

// ParseQuery splits a raw query into FTS5 MATCH syntax, honoring
// field-qualified terms (subject:/body:) and quoted phrases by passing them
// through largely unmodified — FTS5 already understands column filters
// (`subject:term`) and phrase queries (`"a b"`).
func ParseQuery(raw string) string {
	fields := strings.Fields(raw)
	var out []string
	for _, f := range fields {
		if m := fieldQualifier.FindStringSubmatch(f); m != nil {
			out = append(out, m[1]+":"+m[2])
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// Search implements search_messages: runs the parsed query against the
// full-text index (falling back to LIKE on malformed syntax, handled inside
// store.SearchMessages), and attaches a highlighted snippet per hit. scope
// restricts which column(s) the query matches against; order picks
// "relevance" (FTS5 rank, default) or "recent" (created_ts descending).
func Search(ctx context.Context, s *store.Store, projectID int64, rawQuery string, limit int, scope Scope, order string) ([]Hit, error) {
	parsed := ParseQuery(rawQuery)
	switch scope {
	case ScopeSubject, ScopeBody:
		parsed = string(scope) + ":(" + parsed + ")"
	}

	results, err := s.SearchMessages(ctx, projectID, parsed, limit, order)
	if err != nil {
		return nil, err
	}

	terms := searchTerms(rawQuery)
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{Message: r.Message, Snippet: snippet(r.Message.BodyMD, terms)})
	}
	return hits, nil
}

func searchTerms(raw string) []string {
	var terms []string
	for _, f := range strings.Fields(raw) {
		f = strings.Trim(f, `"`)
		if m := fieldQualifier.FindStringSubmatch(f); m != nil {
			f = m[2]
		}
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// snippet returns up to ~120 characters of body around the first matched
// term, with the term wrapped in **bold** Markdown emphasis.
func snippet(body string, terms []string) string {
	lower := strings.ToLower(body)
	for _, term := range terms {
		idx := strings.Index(lower, strings.ToLower(term))
		if idx < 0 {
			continue
		}
		start := idx - 40
		if start < 0 {
			start = 0
		}
		end := idx + len(term) + 80
		if end > len(body) {
			end = len(body)
		}
		excerpt := body[start:end]
		highlighted := strings.Replace(excerpt, body[idx:idx+len(term)], "**"+body[idx:idx+len(term)]+"**", 1)
		return strings.TrimSpace(highlighted)
	}
	if len(body) > 160 {
		return strings.TrimSpace(body[:160]) + "..."
	}
	return strings.TrimSpace(body)
}
