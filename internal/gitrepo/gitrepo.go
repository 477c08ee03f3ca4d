// Package gitrepo implements the Git Commit Coordinator: one repository per
// project, lazily initialized, committing every write session under the
// project's advisory lock with a constant synthetic identity and structured
// trailers for log filtering.
package gitrepo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
)

// botName and botEmail are the constant synthetic author/committer identity
// used for every commit; agentmail never commits as the invoking user.
const (
	botName  = "mcp-agent-mail"
	botEmail = "bot@local"
)

// Kind labels a commit's Kind trailer.
type Kind string

const (
	KindSend    Kind = "send"
	KindReply   Kind = "reply"
	KindReserve Kind = "reserve"
	KindRelease Kind = "release"
	KindProfile Kind = "profile"
)

// Trailers are the structured commit metadata lines appended after the
// summary, one per non-empty field, enabling `git log --grep` filtering.
type Trailers struct {
	Agent     string
	Thread    string
	MessageID string
	Kind      Kind
}

func (t Trailers) lines() []string {
	var lines []string
	if t.Agent != "" {
		lines = append(lines, "Agent: "+t.Agent)
	}
	if t.Thread != "" {
		lines = append(lines, "Thread: "+t.Thread)
	}
	if t.MessageID != "" {
		lines = append(lines, "Message-Id: "+t.MessageID)
	}
	if t.Kind != "" {
		lines = append(lines, "Kind: "+string(t.Kind))
	}
	return lines
}

// Coordinator wraps a single project's Git repository.
type Coordinator struct {
	root string
	repo *git.Repository
}

// Open lazily initializes (if absent) and opens the repository at root.
func Open(root string) (*Coordinator, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create repo root: %w", err)
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		if err != git.ErrRepositoryNotExists {
			return nil, fmt.Errorf("open repository: %w", err)
		}
		repo, err = git.PlainInit(root, false)
		if err != nil {
			return nil, fmt.Errorf("init repository: %w", err)
		}
	}
	return &Coordinator{root: root, repo: repo}, nil
}

// Root returns the repository's working tree root.
func (c *Coordinator) Root() string {
	return c.root
}

// PreImage captures the current on-disk bytes (and existence) of every path
// so a failed commit can roll the working tree back to exactly this state.
type PreImage struct {
	snapshots map[string]preImageEntry
}

type preImageEntry struct {
	existed bool
	data    []byte
	mode    os.FileMode
}

// CapturePreImage records the current state of the given repo-root-relative
// or absolute paths, to be restored by Restore if the subsequent commit
// fails.
func (c *Coordinator) CapturePreImage(paths []string) (PreImage, error) {
	pre := PreImage{snapshots: make(map[string]preImageEntry, len(paths))}
	for _, p := range paths {
		abs := c.abs(p)
		data, err := os.ReadFile(abs)
		switch {
		case err == nil:
			info, statErr := os.Stat(abs)
			mode := os.FileMode(0o644)
			if statErr == nil {
				mode = info.Mode()
			}
			pre.snapshots[abs] = preImageEntry{existed: true, data: data, mode: mode}
		case os.IsNotExist(err):
			pre.snapshots[abs] = preImageEntry{existed: false}
		default:
			return PreImage{}, fmt.Errorf("capture pre-image for %s: %w", p, err)
		}
	}
	return pre, nil
}

// Restore reverts every captured path to its pre-image state: rewriting
// files that existed, removing files that did not.
func (pre PreImage) Restore() error {
	for abs, entry := range pre.snapshots {
		if entry.existed {
			if err := os.WriteFile(abs, entry.data, entry.mode); err != nil {
				return fmt.Errorf("restore %s: %w", abs, err)
			}
			continue
		}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", abs, err)
		}
	}
	return nil
}

func (c *Coordinator) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

// Commit stages the given repo-root-relative or absolute paths and commits
// them with summary plus trailers rendered on following lines, using the
// constant synthetic bot identity. On failure it returns
// apperr.ArchiveCommitFailed; callers are expected to have already captured
// a PreImage and to call Restore on that error.
func (c *Coordinator) Commit(paths []string, summary string, trailers Trailers) (string, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return "", apperr.Wrap(apperr.ArchiveCommitFailed, err, "open worktree")
	}

	for _, p := range paths {
		rel := p
		if filepath.IsAbs(p) {
			rel, err = filepath.Rel(c.root, p)
			if err != nil {
				return "", apperr.Wrap(apperr.ArchiveCommitFailed, err, "relativize path %s", p)
			}
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return "", apperr.Wrap(apperr.ArchiveCommitFailed, err, "stage %s", rel)
		}
	}

	message := renderMessage(summary, trailers)
	now := time.Now().UTC()
	sig := &object.Signature{Name: botName, Email: botEmail, When: now}

	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", apperr.Wrap(apperr.ArchiveCommitFailed, err, "commit")
	}
	return hash.String(), nil
}

func renderMessage(summary string, t Trailers) string {
	var b bytes.Buffer
	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n")
	lines := t.lines()
	if len(lines) > 0 {
		b.WriteString("\n")
		for _, l := range lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}
