package store

import (
	"context"
	"database/sql"
	"errors"
)

// AgentNameTaken reports whether name is already registered in a project,
// satisfying the ids.NameTaken closure shape.
func (s *Store) AgentNameTaken(ctx context.Context, projectID int64, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM agents WHERE project_id = ? AND name = ?`, projectID, name).Scan(&n)
	return n > 0, err
}

// RegisterAgent inserts a new agent row. Callers resolve the unique name
// (internal/ids.UniqueAgentName) before calling this.
func (s *Store) RegisterAgent(ctx context.Context, a Agent) (Agent, error) {
	now := Now()
	a.InceptionTs, a.LastActiveTs = now, now
	if a.AttachmentsPolicy == "" {
		a.AttachmentsPolicy = "auto"
	}
	if a.ContactPolicy == "" {
		a.ContactPolicy = "auto"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (project_id, name, program, model, task, attachments_policy, contact_policy, inception_ts, last_active_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.Name, a.Program, a.Model, a.Task, a.AttachmentsPolicy, a.ContactPolicy,
		now.Unix(), now.Unix())
	if err != nil {
		return Agent{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Agent{}, err
	}
	a.ID = id
	return a, nil
}

// AgentByName looks up an agent by its name within a project.
func (s *Store) AgentByName(ctx context.Context, projectID int64, name string) (Agent, error) {
	return s.scanAgent(s.db.QueryRowContext(ctx, agentSelect+` WHERE project_id = ? AND name = ?`,
		projectID, name))
}

// AgentByID looks up an agent by its primary key.
func (s *Store) AgentByID(ctx context.Context, id int64) (Agent, error) {
	return s.scanAgent(s.db.QueryRowContext(ctx, agentSelect+` WHERE id = ?`, id))
}

// TouchAgent bumps last_active_ts to now, called on every verb an agent
// invokes so whois() reflects real recency.
func (s *Store) TouchAgent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET last_active_ts = ? WHERE id = ?`, Now().Unix(), id)
	return err
}

// SetContactPolicy implements set_contact_policy: updates an agent's
// contact_policy in place.
func (s *Store) SetContactPolicy(ctx context.Context, agentID int64, policy string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET contact_policy = ? WHERE id = ?`, policy, agentID)
	return err
}

// AgentsByNameAnyProject looks up every agent named name across all
// projects, used to resolve resource://inbox|outbox/{agent} when the
// request omits ?project and the name happens to be unambiguous.
func (s *Store) AgentsByNameAnyProject(ctx context.Context, name string) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, agentSelect+` WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAgents returns every agent registered in a project, most-recently
// active first.
func (s *Store) ListAgents(ctx context.Context, projectID int64) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, agentSelect+` WHERE project_id = ? ORDER BY last_active_ts DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const agentSelect = `SELECT id, project_id, name, program, model, task, attachments_policy, contact_policy, inception_ts, last_active_ts FROM agents`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanAgent(row *sql.Row) (Agent, error) {
	return scanAgentGeneric(row)
}

func scanAgentRow(rows *sql.Rows) (Agent, error) {
	return scanAgentGeneric(rows)
}

func scanAgentGeneric(row rowScanner) (Agent, error) {
	var a Agent
	var inception, lastActive int64
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Program, &a.Model, &a.Task,
		&a.AttachmentsPolicy, &a.ContactPolicy, &inception, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, err
		}
		return Agent{}, err
	}
	a.InceptionTs = timeOrZero(sql.NullInt64{Int64: inception, Valid: true})
	a.LastActiveTs = timeOrZero(sql.NullInt64{Int64: lastActive, Valid: true})
	return a, nil
}
