package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/gitrepo"
	"github.com/Dicklesworthstone/agentmail/internal/lockfile"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

const minTTLSeconds = 60

// Engine implements reserve/release/renew/force_release against a single
// project's Index Store and archive tree.
type Engine struct {
	Store *store.Store
	Tree  archive.Tree
	Repo  *gitrepo.Coordinator
}

// Grant is one successfully reserved pattern.
type Grant struct {
	Reservation store.Reservation
}

// Conflict describes why a requested pattern could not be granted.
type Conflict struct {
	Pattern string
	Holder  string
	Reason  string
}

// ReserveRequest is the input to Reserve.
type ReserveRequest struct {
	ProjectID   int64
	AgentID     int64
	AgentName   string
	Patterns    []string
	TTLSeconds  int64
	Exclusive   bool
	Reason      string
	AllOrNothing bool
}

// ReserveResult is the output of Reserve.
type ReserveResult struct {
	Granted   []Grant
	Conflicts []Conflict
}

// Reserve implements §4.6's reserve operation: expire stale leases, check
// each requested pattern for overlap against other agents' active leases,
// grant non-conflicting patterns (unless all_or_nothing and any conflict),
// and commit one archive artifact per grant.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	now := store.Now()
	if _, err := e.Store.ExpireReservations(ctx, now.Unix()); err != nil {
		return ReserveResult{}, fmt.Errorf("expire stale leases: %w", err)
	}

	active, err := e.Store.ActiveReservations(ctx, req.ProjectID, now.Unix())
	if err != nil {
		return ReserveResult{}, fmt.Errorf("list active reservations: %w", err)
	}

	ttl := req.TTLSeconds
	if ttl < minTTLSeconds {
		ttl = minTTLSeconds
	}
	expiresAt := now.Add(time.Duration(ttl) * time.Second)

	var result ReserveResult
	for _, pattern := range req.Patterns {
		conflict, err := e.findConflict(req.ProjectID, req.AgentID, pattern, req.Exclusive, active)
		if err != nil {
			return ReserveResult{}, err
		}
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}

		r, err := e.Store.CreateReservation(ctx, store.Reservation{
			ProjectID: req.ProjectID, AgentID: req.AgentID, PathPattern: pattern,
			Exclusive: req.Exclusive, Reason: req.Reason, ExpiresTs: expiresAt,
		})
		if err != nil {
			return ReserveResult{}, fmt.Errorf("create reservation: %w", err)
		}
		result.Granted = append(result.Granted, Grant{Reservation: r})
		// Newly granted reservations must also be visible to subsequent
		// patterns in this same call.
		active = append(active, r)
	}

	if req.AllOrNothing && len(result.Conflicts) > 0 {
		for _, g := range result.Granted {
			_ = e.Store.ReleaseReservation(ctx, g.Reservation.ID)
		}
		return ReserveResult{Conflicts: result.Conflicts}, nil
	}

	if len(result.Granted) > 0 {
		if err := e.commitGrants(ctx, req.AgentName, result.Granted); err != nil {
			return ReserveResult{}, err
		}
	}
	return result, nil
}

func (e *Engine) findConflict(projectID, agentID int64, pattern string, exclusive bool, active []store.Reservation) (*Conflict, error) {
	for _, other := range active {
		if other.AgentID == agentID {
			continue
		}
		if !other.Exclusive && !exclusive {
			continue
		}
		overlaps, err := Overlap(e.Tree.Root, pattern, other.PathPattern)
		if err != nil {
			return nil, fmt.Errorf("overlap check: %w", err)
		}
		if overlaps {
			return &Conflict{Pattern: pattern, Holder: fmt.Sprintf("agent:%d", other.AgentID), Reason: "overlapping exclusive reservation"}, nil
		}
	}
	return nil, nil
}

func (e *Engine) commitGrants(ctx context.Context, agentName string, grants []Grant) error {
	lockPath := fmt.Sprintf("%s/.am.lock", e.Tree.Root)
	lock, err := lockfile.Acquire(ctx, lockPath)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "acquire project lock")
	}
	defer lock.Release()

	var paths []string
	for _, g := range grants {
		path, err := e.Tree.WriteClaim(archive.ReservationArtifact{
			Agent: agentName, Pattern: g.Reservation.PathPattern, Exclusive: g.Reservation.Exclusive,
			Reason: g.Reservation.Reason, CreatedTs: g.Reservation.CreatedTs, ExpiresTs: g.Reservation.ExpiresTs,
		})
		if err != nil {
			return apperr.Wrap(apperr.ArchiveCommitFailed, err, "write claim artifact")
		}
		paths = append(paths, path)
	}

	pre, err := e.Repo.CapturePreImage(paths)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "capture pre-image")
	}

	summary := fmt.Sprintf("reserve %d pattern(s) for %s", len(grants), agentName)
	if _, err := e.Repo.Commit(paths, summary, gitrepo.Trailers{Agent: agentName, Kind: gitrepo.KindReserve}); err != nil {
		if restoreErr := pre.Restore(); restoreErr != nil {
			return apperr.Wrap(apperr.ArchiveCommitFailed, restoreErr, "restore pre-image after commit failure")
		}
		return err
	}
	return nil
}

// resolveIDs expands a release/renew request's identifier set: if ids is
// non-empty it's used as-is, otherwise patterns is matched against the
// agent's own active reservations (exact path_pattern match) per spec.md
// §4.6's release(agent, patterns? | ids?) / renew(agent, ..., patterns? | ids?).
func (e *Engine) resolveIDs(ctx context.Context, projectID, agentID int64, ids []int64, patterns []string) ([]int64, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	active, err := e.Store.AgentReservations(ctx, projectID, agentID, store.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("list agent reservations: %w", err)
	}
	want := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		want[p] = true
	}
	var out []int64
	for _, r := range active {
		if want[r.PathPattern] {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

// Release implements release(agent, patterns? | ids?): sets released_ts on
// the matching reservations, refusing ones not held by agentID, and rewrites
// each on-disk claim artifact with released set so the guard hook (which
// reads claims/*.json directly, not the DB) immediately treats them as
// inactive instead of waiting out the original TTL.
func (e *Engine) Release(ctx context.Context, projectID, agentID int64, agentName string, ids []int64, patterns []string) (int, error) {
	resolved, err := e.resolveIDs(ctx, projectID, agentID, ids, patterns)
	if err != nil {
		return 0, err
	}
	released := 0
	var toCommit []store.Reservation
	for _, id := range resolved {
		r, err := e.Store.ReservationByID(ctx, id)
		if err != nil {
			continue
		}
		if r.AgentID != agentID {
			continue
		}
		if err := e.Store.ReleaseReservation(ctx, id); err != nil {
			return released, err
		}
		r.ReleasedTs = store.Now()
		toCommit = append(toCommit, r)
		released++
	}
	if len(toCommit) > 0 {
		if err := e.commitClaimUpdates(ctx, agentName, toCommit); err != nil {
			return released, err
		}
	}
	return released, nil
}

// Renew implements renew(agent, extend_seconds, patterns? | ids?): extends
// expires_ts on active leases held by agentID, refusing released/expired
// ones, and rewrites each claim artifact's expires so the guard hook sees
// the extended TTL rather than the original one.
func (e *Engine) Renew(ctx context.Context, projectID, agentID int64, agentName string, ids []int64, patterns []string, extendSeconds int64) (int, error) {
	resolved, err := e.resolveIDs(ctx, projectID, agentID, ids, patterns)
	if err != nil {
		return 0, err
	}
	now := store.Now()
	renewed := 0
	var toCommit []store.Reservation
	for _, id := range resolved {
		r, err := e.Store.ReservationByID(ctx, id)
		if err != nil {
			continue
		}
		if r.AgentID != agentID || !r.Active(now) {
			continue
		}
		newExpiry := r.ExpiresTs.Add(time.Duration(extendSeconds) * time.Second)
		if err := e.Store.RenewReservation(ctx, id, newExpiry.Unix()); err != nil {
			return renewed, err
		}
		r.ExpiresTs = newExpiry
		toCommit = append(toCommit, r)
		renewed++
	}
	if len(toCommit) > 0 {
		if err := e.commitClaimUpdates(ctx, agentName, toCommit); err != nil {
			return renewed, err
		}
	}
	return renewed, nil
}

// ForceRelease implements the operator-privileged force_release(id): it
// releases a reservation regardless of holder. Callers must have already
// enforced the writer-role requirement.
func (e *Engine) ForceRelease(ctx context.Context, id int64) error {
	r, err := e.Store.ReservationByID(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Store.ReleaseReservation(ctx, id); err != nil {
		return err
	}
	r.ReleasedTs = store.Now()
	agent, err := e.Store.AgentByID(ctx, r.AgentID)
	if err != nil {
		return err
	}
	return e.commitClaimUpdates(ctx, agent.Name, []store.Reservation{r})
}

// commitClaimUpdates rewrites the on-disk claim artifact for each given
// reservation (reflecting its current released/expires state) and commits
// them in one batch, mirroring commitGrants.
func (e *Engine) commitClaimUpdates(ctx context.Context, agentName string, rs []store.Reservation) error {
	lockPath := fmt.Sprintf("%s/.am.lock", e.Tree.Root)
	lock, err := lockfile.Acquire(ctx, lockPath)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "acquire project lock")
	}
	defer lock.Release()

	var paths []string
	for _, r := range rs {
		artifact := archive.ReservationArtifact{
			Agent: agentName, Pattern: r.PathPattern, Exclusive: r.Exclusive,
			Reason: r.Reason, CreatedTs: r.CreatedTs, ExpiresTs: r.ExpiresTs,
		}
		if !r.ReleasedTs.IsZero() {
			released := r.ReleasedTs
			artifact.ReleasedTs = &released
		}
		path, err := e.Tree.WriteClaim(artifact)
		if err != nil {
			return apperr.Wrap(apperr.ArchiveCommitFailed, err, "write claim artifact")
		}
		paths = append(paths, path)
	}

	pre, err := e.Repo.CapturePreImage(paths)
	if err != nil {
		return apperr.Wrap(apperr.ArchiveCommitFailed, err, "capture pre-image")
	}

	summary := fmt.Sprintf("update %d claim(s) for %s", len(rs), agentName)
	if _, err := e.Repo.Commit(paths, summary, gitrepo.Trailers{Agent: agentName, Kind: gitrepo.KindRelease}); err != nil {
		if restoreErr := pre.Restore(); restoreErr != nil {
			return apperr.Wrap(apperr.ArchiveCommitFailed, restoreErr, "restore pre-image after commit failure")
		}
		return err
	}
	return nil
}
