// Package ids implements the Identifier & Name Generator: project slugs,
// memorable agent names, and opaque message/attachment ids.
package ids

import (
	"regexp"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify returns a lowercase-ASCII, filesystem-safe derivation of human_key:
// `[^a-z0-9]+` collapsed to `-`, trimmed of leading/trailing `-`. An empty
// result (e.g. human_key was entirely punctuation) falls back to "project".
func Slugify(humanKey string) string {
	lower := strings.ToLower(humanKey)
	slug := nonAlnumRun.ReplaceAllString(lower, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "project"
	}
	return slug
}
