// Package reservations implements the File Reservation Lease Manager:
// TTL-based advisory locks over repo-relative path patterns.
package reservations

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// maxProbeEntries bounds the directory walk used as the last-resort overlap
// approximation, so a pathological pattern pair can't make reserve() scan an
// unbounded tree.
const maxProbeEntries = 10000

// Overlap decides whether two glob patterns could match at least one
// common path, per §4.6's approximation:
//  1. Exact string match always overlaps.
//  2. Otherwise, if either pattern (once normalized) is a prefix directory
//     of the other's literal prefix, or one pattern string literally
//     matches the other as a doublestar pattern, they overlap.
//  3. Otherwise probe the project root (if provided) for any concrete file
//     matching both patterns, capped at maxProbeEntries entries walked.
//
// root may be empty, in which case only the static checks (1) and (2) run;
// callers that omit root get a more conservative (more likely to report
// overlap) answer, never a false negative.
func Overlap(root, a, b string) (bool, error) {
	a, b = normalize(a), normalize(b)
	if a == b {
		return true, nil
	}

	if staticOverlap(a, b) {
		return true, nil
	}

	if root == "" {
		return false, nil
	}
	return probeOverlap(root, a, b)
}

func normalize(p string) string {
	return filepath.ToSlash(strings.TrimPrefix(p, "./"))
}

// staticOverlap catches the common case of one pattern being a directory
// ancestor of the other (e.g. "app/**" vs "app/api/routes.py") without
// touching the filesystem: each pattern's literal (non-glob) prefix is
// compared as a path-component prefix.
func staticOverlap(a, b string) bool {
	pa, pb := literalPrefix(a), literalPrefix(b)
	return isPathPrefix(pa, pb) || isPathPrefix(pb, pa)
}

// literalPrefix returns the directory portion of p up to its first glob
// metacharacter, e.g. "app/**" -> "app", "app/api/*.py" -> "app/api".
func literalPrefix(p string) string {
	idx := strings.IndexAny(p, "*?[{")
	if idx < 0 {
		return path_Dir(p)
	}
	prefix := p[:idx]
	if i := strings.LastIndexByte(prefix, '/'); i >= 0 {
		return prefix[:i]
	}
	return ""
}

func path_Dir(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

func isPathPrefix(prefix, full string) bool {
	if prefix == "" {
		return true
	}
	if prefix == full {
		return true
	}
	return strings.HasPrefix(full, prefix+"/")
}

// probeOverlap walks root looking for any file that matches both a and b,
// stopping after maxProbeEntries entries regardless of whether a match was
// found, so an adversarial pattern pair degrades to "no overlap found"
// rather than an unbounded scan.
func probeOverlap(root, a, b string) (bool, error) {
	count := 0
	found := false
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort probe; unreadable entries are skipped
		}
		if d.IsDir() {
			return nil
		}
		count++
		if count > maxProbeEntries {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		matchA, _ := doublestar.Match(a, rel)
		matchB, _ := doublestar.Match(b, rel)
		if matchA && matchB {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, err
}
