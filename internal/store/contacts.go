package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertContactRequest creates or re-opens a contact link request between
// two agents, stored under the canonical ordered pair regardless of who
// initiated it.
func (s *Store) UpsertContactRequest(ctx context.Context, projectID, requester, target int64) (Contact, error) {
	a, b := OrderedPair(requester, target)
	existing, err := s.ContactBetween(ctx, projectID, a, b)
	if err == nil && existing.State != ContactDenied && existing.State != ContactExpired {
		return existing, nil
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Contact{}, err
	}

	now := Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (project_id, agent_a, agent_b, state, created_ts)
		VALUES (?, ?, ?, 'pending', ?)
		ON CONFLICT(project_id, agent_a, agent_b) DO UPDATE SET state = 'pending', created_ts = excluded.created_ts, decided_ts = NULL`,
		projectID, a, b, now.Unix())
	if err != nil {
		return Contact{}, err
	}
	return Contact{ProjectID: projectID, AgentA: a, AgentB: b, State: ContactPending, CreatedTs: now}, nil
}

// DecideContact approves or denies a pending contact request. expiresAt is
// only applied when approve is true; pass the zero time for none.
func (s *Store) DecideContact(ctx context.Context, projectID, a, b int64, approve bool, expiresAt time.Time) error {
	lo, hi := OrderedPair(a, b)
	state := ContactDenied
	if approve {
		state = ContactApproved
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET state = ?, decided_ts = ?, expires_ts = ? WHERE project_id = ? AND agent_a = ? AND agent_b = ?`,
		string(state), Now().Unix(), nullTime(expiresAt), projectID, lo, hi)
	return err
}

// ContactBetween returns the contact row for an ordered pair, if any.
func (s *Store) ContactBetween(ctx context.Context, projectID, a, b int64) (Contact, error) {
	lo, hi := OrderedPair(a, b)
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, agent_a, agent_b, state, created_ts, decided_ts, expires_ts
		FROM contacts WHERE project_id = ? AND agent_a = ? AND agent_b = ?`, projectID, lo, hi)
	return scanContact(row)
}

// ApprovedContact reports whether a and b have an approved contact link.
func (s *Store) ApprovedContact(ctx context.Context, projectID, a, b int64) (bool, error) {
	c, err := s.ContactBetween(ctx, projectID, a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.State == ContactApproved, nil
}

// ListContacts returns every contact link touching agentID.
func (s *Store) ListContacts(ctx context.Context, projectID, agentID int64) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, agent_a, agent_b, state, created_ts, decided_ts, expires_ts
		FROM contacts WHERE project_id = ? AND (agent_a = ? OR agent_b = ?)`, projectID, agentID, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContact(row rowScanner) (Contact, error) {
	var c Contact
	var state string
	var createdTs int64
	var decidedTs, expiresTs sql.NullInt64
	if err := row.Scan(&c.ProjectID, &c.AgentA, &c.AgentB, &state, &createdTs, &decidedTs, &expiresTs); err != nil {
		return Contact{}, err
	}
	c.State = ContactState(state)
	c.CreatedTs = timeOrZero(sql.NullInt64{Int64: createdTs, Valid: true})
	c.DecidedTs = timeOrZero(decidedTs)
	c.ExpiresTs = timeOrZero(expiresTs)
	return c, nil
}
