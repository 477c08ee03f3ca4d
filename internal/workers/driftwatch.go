package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// driftWarnRate caps how often DriftWatch logs drift/watch-error warnings
// for a single watched project. A busy claims/ directory can emit dozens of
// write events per second (an agent rewriting several artifacts in a loop);
// without a limiter each one produces its own warning line.
const driftWarnRate = rate.Limit(2)

// DriftWatch watches a project's claims/ directory (the archive tree is
// server-owned, §5's shared-resource policy) and re-checks every claim
// artifact that is created or written, whichever process wrote it, against
// the Index Store, logging a warning identifying the artifact and how it
// disagrees with the Index Store, which stays authoritative regardless of
// what drifted on disk. Removed artifacts are not checked.
//
// Unlike the other workers, DriftWatch is event-driven rather than
// ticker-driven, so it is started directly (not through Scheduler) with
// its own goroutine per watched project.
type DriftWatch struct {
	Store  *store.Store
	Logger *slog.Logger
}

// Watch blocks, watching claimsDir for projectID until ctx is cancelled.
func (w *DriftWatch) Watch(ctx context.Context, projectID int64, claimsDir string) error {
	if err := os.MkdirAll(claimsDir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(claimsDir); err != nil {
		return err
	}

	limiter := rate.NewLimiter(driftWarnRate, 5)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.checkDrift(ctx, projectID, event.Name, limiter)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if limiter.Allow() {
				w.Logger.Warn("claims directory watch error", "error", err)
			}
		}
	}
}

func (w *DriftWatch) checkDrift(ctx context.Context, projectID int64, path string, limiter *rate.Limiter) {
	warn := func(msg string, args ...any) {
		if limiter.Allow() {
			w.Logger.Warn(msg, args...)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		warn("drift check: read artifact", "path", path, "error", err)
		return
	}
	var artifact archive.ReservationArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		warn("drift check: malformed claim artifact", "path", path, "error", err)
		return
	}

	active, err := w.Store.ActiveReservations(ctx, projectID, artifact.CreatedTs.Unix())
	if err != nil {
		warn("drift check: load active reservations", "error", err)
		return
	}
	for _, r := range active {
		if r.PathPattern == artifact.Pattern {
			if r.Exclusive != artifact.Exclusive {
				warn("claim artifact drifted from index store",
					"path", filepath.Base(path), "pattern", artifact.Pattern,
					"store_exclusive", r.Exclusive, "disk_exclusive", artifact.Exclusive)
			}
			return
		}
	}
	warn("claim artifact has no matching active reservation",
		"path", filepath.Base(path), "pattern", artifact.Pattern)
}
