// Package tools implements the core-facing verb contract (§6.2): one file
// per verb group, each exposing a small set of types that satisfy
// mcp.Tool. Every tool is a thin adapter between JSON-RPC parameters and
// the domain engines in internal/messaging, internal/reservations,
// internal/contacts, internal/search, and internal/guardhook; none of them
// hold business logic of their own.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/attachments"
	"github.com/Dicklesworthstone/agentmail/internal/cachettl"
	"github.com/Dicklesworthstone/agentmail/internal/config"
	"github.com/Dicklesworthstone/agentmail/internal/contacts"
	"github.com/Dicklesworthstone/agentmail/internal/gitrepo"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/messaging"
	"github.com/Dicklesworthstone/agentmail/internal/reservations"
	"github.com/Dicklesworthstone/agentmail/internal/search"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// Deps is the shared collaborator set every tool is constructed with,
// analogous to the teacher's emergent.ClientFactory: a single place that
// knows how to build the per-project engines (each of which needs a
// project-scoped archive.Tree and a lazily-opened gitrepo.Coordinator) so
// individual tools stay free of wiring concerns.
type Deps struct {
	Store    *store.Store
	Contacts *contacts.Engine
	Cfg      *config.Config
	Logger   *slog.Logger

	// digests caches summarize_thread/summarize_threads results, keyed by
	// "<project_id>:<thread_id>". It is TTL-only (no write-path
	// invalidation): a thread that's actively being appended to may serve a
	// slightly stale digest for up to Cfg.Search.DigestCacheTTLSeconds,
	// which is an acceptable tradeoff for a heuristic summary.
	digests *cachettl.Cache[search.Digest]

	mu    sync.Mutex
	repos map[string]*gitrepo.Coordinator
}

// NewDeps builds a Deps ready to construct per-project engines rooted at
// cfg.Storage.Root.
func NewDeps(s *store.Store, cfg *config.Config, logger *slog.Logger) *Deps {
	return &Deps{
		Store:    s,
		Contacts: &contacts.Engine{Store: s},
		Cfg:      cfg,
		Logger:   logger,
		digests: cachettl.New[search.Digest](
			time.Duration(cfg.Search.DigestCacheTTLSeconds)*time.Second,
			cfg.Search.DigestCacheMaxEntries,
		),
		repos: make(map[string]*gitrepo.Coordinator),
	}
}

func (d *Deps) tree(slug string) archive.Tree {
	return archive.New(d.Cfg.Storage.Root, slug)
}

// repo returns the (lazily opened, cached) Coordinator for slug's archive
// tree. Safe for concurrent use; the per-project advisory lock
// (internal/lockfile) that the messaging and reservation engines take still
// serializes the commits themselves.
func (d *Deps) repo(slug string) (*gitrepo.Coordinator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.repos[slug]; ok {
		return r, nil
	}
	r, err := gitrepo.Open(d.tree(slug).Root)
	if err != nil {
		return nil, err
	}
	d.repos[slug] = r
	return r, nil
}

// resolveProject resolves a project_key that may be either a slug or the
// original human_key (§3's Project invariant: "looking up by either
// resolves to the same project").
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

func (d *Deps) resolveAgent(ctx context.Context, projectID int64, name string) (store.Agent, error) {
	if name == "" {
		return store.Agent{}, apperr.New(apperr.Validation, "agent is required")
	}
	a, err := d.Store.AgentByName(ctx, projectID, name)
	if err != nil {
		return store.Agent{}, apperr.Wrap(apperr.NotFound, err, "agent %q not found", name)
	}
	return a, nil
}

// effectiveEmbedPolicy resolves per-call override > agent policy > server
// default (§4.5), where an agent policy of "auto" falls through to the
// pipeline's own size-threshold heuristic.
func effectiveEmbedPolicy(callOverride, agentPolicy string) attachments.EmbedPolicy {
	if callOverride != "" {
		return attachments.EmbedPolicy(callOverride)
	}
	if agentPolicy != "" {
		return attachments.EmbedPolicy(agentPolicy)
	}
	return attachments.EmbedAuto
}

func (d *Deps) pipeline(slug string, policy attachments.EmbedPolicy, inlineMaxBytes int64) *attachments.Pipeline {
	tree := d.tree(slug)
	if inlineMaxBytes <= 0 {
		inlineMaxBytes = d.Cfg.Attachments.InlineImageMaxBytes
	}
	return attachments.New(attachments.Options{
		ProjectRoot:        tree.Root,
		Tree:               tree,
		Policy:             policy,
		InlineMaxBytes:     inlineMaxBytes,
		KeepOriginalImages: d.Cfg.Attachments.KeepOriginalImages,
	})
}

func (d *Deps) messagingEngine(slug string, policy attachments.EmbedPolicy, inlineMaxBytes int64, autoContactIfBlocked bool) (*messaging.Engine, error) {
	repo, err := d.repo(slug)
	if err != nil {
		return nil, err
	}
	return &messaging.Engine{
		Store:                d.Store,
		Tree:                 d.tree(slug),
		Repo:                 repo,
		Contacts:             d.Contacts,
		Pipeline:             d.pipeline(slug, policy, inlineMaxBytes),
		AutoContactIfBlocked: autoContactIfBlocked,
	}, nil
}

func (d *Deps) reservationEngine(slug string) (*reservations.Engine, error) {
	repo, err := d.repo(slug)
	if err != nil {
		return nil, err
	}
	return &reservations.Engine{Store: d.Store, Tree: d.tree(slug), Repo: repo}, nil
}

// result turns an error into a tool outcome: typed *apperr.Error values
// (validation failures, conflicts, blocked contacts — predictable domain
// outcomes per §7) are reported as a successful JSON-RPC call carrying
// isError=true, so the caller can inspect Kind from the message; anything
// else is treated as an infrastructure failure and bubbles up through the
// registry so server.go logs it and the call counts as an error.
func result(err error) (*mcp.ToolsCallResult, error) {
	if apperr.KindOf(err) != apperr.Internal {
		return mcp.ErrorResult(err.Error()), nil
	}
	return nil, err
}

func badParams(err error) (*mcp.ToolsCallResult, error) {
	return mcp.ErrorResult("invalid parameters: " + err.Error()), nil
}

func digestCacheKey(projectID int64, threadID string) string {
	return fmt.Sprintf("%d:%s", projectID, threadID)
}
