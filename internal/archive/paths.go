// Package archive implements the Archive Filesystem Layer: the canonical
// per-project directory tree of Markdown and JSON artifacts that is the
// durable record of everything agentmail persists. The Index Store
// (internal/store) is a rebuildable projection of this tree, never the
// other way around.
package archive

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"
)

// Tree resolves paths within a single project's archive root
// (<store>/projects/<slug>/repo).
type Tree struct {
	Root string
}

// New returns a Tree rooted at storeRoot/projects/slug/repo.
func New(storeRoot, slug string) Tree {
	return Tree{Root: filepath.Join(storeRoot, "projects", slug, "repo")}
}

// AgentDir returns agents/<name>/.
func (t Tree) AgentDir(name string) string {
	return filepath.Join(t.Root, "agents", name)
}

// ProfilePath returns agents/<name>/profile.json.
func (t Tree) ProfilePath(name string) string {
	return filepath.Join(t.AgentDir(name), "profile.json")
}

// InboxMessagePath returns agents/<name>/inbox/YYYY/MM/<msgID>.md.
func (t Tree) InboxMessagePath(name string, sent time.Time, msgID string) string {
	return filepath.Join(t.AgentDir(name), "inbox", yearMonth(sent), msgID+".md")
}

// OutboxMessagePath returns agents/<name>/outbox/YYYY/MM/<msgID>.md.
func (t Tree) OutboxMessagePath(name string, sent time.Time, msgID string) string {
	return filepath.Join(t.AgentDir(name), "outbox", yearMonth(sent), msgID+".md")
}

// CanonicalMessagePath returns messages/YYYY/MM/<msgID>.md, the canonical
// copy; the inbox/outbox copies under agent directories are byte-identical
// duplicates of it (see WriteMessageBody).
func (t Tree) CanonicalMessagePath(sent time.Time, msgID string) string {
	return filepath.Join(t.Root, "messages", yearMonth(sent), msgID+".md")
}

// ClaimPath returns claims/<sha1(pathPattern)>.json.
func (t Tree) ClaimPath(pathPattern string) string {
	return filepath.Join(t.Root, "claims", sha1Hex(pathPattern)+".json")
}

// ClaimsDir returns the claims/ directory, used by the drift watcher and the
// guard hook to enumerate all reservation artifacts.
func (t Tree) ClaimsDir() string {
	return filepath.Join(t.Root, "claims")
}

// AttachmentPath returns attachments/<sha1[:2]>/<sha1>.<ext>.
func (t Tree) AttachmentPath(sha1Sum, ext string) string {
	return filepath.Join(t.Root, "attachments", sha1Sum[:2], sha1Sum+"."+ext)
}

// OriginalAttachmentPath returns attachments/originals/<sha1>.<ext>.
func (t Tree) OriginalAttachmentPath(sha1Sum, ext string) string {
	return filepath.Join(t.Root, "attachments", "originals", sha1Sum+"."+ext)
}

func yearMonth(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d/%02d", u.Year(), u.Month())
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Sha1Hex is the exported form, shared with the attachment pipeline's
// content-addressing so both packages hash identically.
func Sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
