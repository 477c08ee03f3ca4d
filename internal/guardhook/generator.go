// Package guardhook generates and installs the pre-commit guard script that
// refuses commits touching paths covered by another agent's active
// exclusive reservation.
package guardhook

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
)

const (
	hookFileName = "pre-commit"
	marker       = "# agentmail:guard-hook"
)

// InstallResult reports what Install did, including whether a pre-existing
// foreign hook was preserved.
type InstallResult struct {
	HookPath     string
	BackedUpPath string
}

// Install writes the guard script into repoRoot/.git/hooks/pre-commit. An
// existing hook not generated by this package is preserved as a
// ".bak-<unixnano>" sibling rather than overwritten silently.
func Install(repoRoot, claimsDir, projectSlug string) (InstallResult, error) {
	hooksDir := filepath.Join(repoRoot, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return InstallResult{}, apperr.Wrap(apperr.Internal, err, "create hooks directory")
	}
	hookPath := filepath.Join(hooksDir, hookFileName)

	var result InstallResult
	result.HookPath = hookPath

	if existing, err := os.ReadFile(hookPath); err == nil {
		if !bytes.Contains(existing, []byte(marker)) {
			backup := fmt.Sprintf("%s.bak-%d", hookPath, time.Now().UnixNano())
			if err := os.WriteFile(backup, existing, 0o755); err != nil {
				return InstallResult{}, apperr.Wrap(apperr.Internal, err, "back up existing pre-commit hook")
			}
			result.BackedUpPath = backup
		}
	} else if !os.IsNotExist(err) {
		return InstallResult{}, apperr.Wrap(apperr.Internal, err, "stat existing pre-commit hook")
	}

	script, err := Render(claimsDir, projectSlug)
	if err != nil {
		return InstallResult{}, err
	}
	if err := os.WriteFile(hookPath, script, 0o755); err != nil {
		return InstallResult{}, apperr.Wrap(apperr.Internal, err, "write pre-commit hook")
	}
	return result, nil
}

// Uninstall removes the guard script only if it still carries our marker,
// and restores the newest backup sibling if one exists.
func Uninstall(repoRoot string) error {
	hookPath := filepath.Join(repoRoot, ".git", "hooks", hookFileName)
	existing, err := os.ReadFile(hookPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(apperr.Internal, err, "read pre-commit hook")
	}
	if !bytes.Contains(existing, []byte(marker)) {
		return apperr.New(apperr.Validation, "pre-commit hook at %s was not installed by agentmail, refusing to remove", hookPath)
	}

	backup, err := latestBackup(hookPath)
	if err != nil {
		return err
	}
	if backup == "" {
		return os.Remove(hookPath)
	}
	data, err := os.ReadFile(backup)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "read hook backup")
	}
	if err := os.WriteFile(hookPath, data, 0o755); err != nil {
		return apperr.Wrap(apperr.Internal, err, "restore hook backup")
	}
	return os.Remove(backup)
}

func latestBackup(hookPath string) (string, error) {
	matches, err := filepath.Glob(hookPath + ".bak-*")
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "glob hook backups")
	}
	if len(matches) == 0 {
		return "", nil
	}
	latest := matches[0]
	for _, m := range matches[1:] {
		if m > latest {
			latest = m
		}
	}
	return latest, nil
}

type templateData struct {
	Marker      string
	ClaimsDir   string
	ProjectSlug string
}

// Render produces the guard script body without writing it anywhere.
func Render(claimsDir, projectSlug string) ([]byte, error) {
	tmpl, err := template.New("pre-commit").Parse(hookTemplate)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "parse guard hook template")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Marker: marker, ClaimsDir: claimsDir, ProjectSlug: projectSlug}); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "render guard hook template")
	}
	return buf.Bytes(), nil
}

const hookTemplate = `#!/bin/sh
{{.Marker}}
# project: {{.ProjectSlug}}
# Refuses commits that touch a path covered by another agent's active
# exclusive file reservation. Generated by agentmail; do not edit by hand —
# reinstall with the install_precommit_guard tool instead.

set -eu

CLAIMS_DIR="{{.ClaimsDir}}"
AGENT="${AGENT_NAME:-${GIT_AUTHOR_NAME:-}}"
NOW=$(date -u +%s)

if [ "${AGENT_MAIL_BYPASS:-0}" = "1" ]; then
	echo "agentmail: AGENT_MAIL_BYPASS=1 set, skipping reservation check" >&2
	exit 0
fi

STAGED=$(git diff --cached --name-only --diff-filter=ACMRT)
if [ -z "$STAGED" ]; then
	exit 0
fi

if [ ! -d "$CLAIMS_DIR" ]; then
	exit 0
fi

for claim in "$CLAIMS_DIR"/*.json; do
	[ -e "$claim" ] || continue

	holder=$(sed -n 's/.*"agent"[[:space:]]*:[[:space:]]*"\([^"]*\)".*/\1/p' "$claim" | head -n1)
	pattern=$(sed -n 's/.*"path_pattern"[[:space:]]*:[[:space:]]*"\([^"]*\)".*/\1/p' "$claim" | head -n1)
	exclusive=$(sed -n 's/.*"exclusive"[[:space:]]*:[[:space:]]*\(true\|false\).*/\1/p' "$claim" | head -n1)
	expires=$(sed -n 's/.*"expires"[[:space:]]*:[[:space:]]*"\([^"]*\)".*/\1/p' "$claim" | head -n1)
	released=$(sed -n 's/.*"released"[[:space:]]*:[[:space:]]*"\([^"]*\)".*/\1/p' "$claim" | head -n1)

	[ "$exclusive" = "true" ] || continue
	[ -n "$released" ] && continue
	[ "$holder" = "$AGENT" ] && continue

	expires_epoch=$(date -u -d "$expires" +%s 2>/dev/null || echo 0)
	[ "$expires_epoch" -gt "$NOW" ] || continue

	for path in $STAGED; do
		case "$path" in
			$pattern)
				echo "agentmail: refusing commit — '$path' is reserved" >&2
				echo "  holder:  $holder" >&2
				echo "  pattern: $pattern" >&2
				echo "  expires: $expires" >&2
				echo "Set AGENT_MAIL_BYPASS=1 to override." >&2
				exit 1
				;;
		esac
	done
done

exit 0
`
