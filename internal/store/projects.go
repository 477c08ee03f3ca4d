package store

import (
	"context"
	"database/sql"
	"errors"
)

// EnsureProject implements ensure_project's idempotent lookup-or-create: a
// project is identified by its human_key (usually an absolute path), and a
// second call with the same key returns the existing row untouched.
func (s *Store) EnsureProject(ctx context.Context, humanKey, slug string) (Project, error) {
	if p, err := s.ProjectByHumanKey(ctx, humanKey); err == nil {
		return p, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Project{}, err
	}

	now := Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (human_key, slug, created_ts) VALUES (?, ?, ?)`,
		humanKey, slug, now.Unix())
	if err != nil {
		return Project{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Project{}, err
	}
	return Project{ID: id, HumanKey: humanKey, Slug: slug, CreatedTs: now}, nil
}

// ProjectByHumanKey looks up a project by its human_key.
func (s *Store) ProjectByHumanKey(ctx context.Context, humanKey string) (Project, error) {
	return s.scanProject(s.db.QueryRowContext(ctx,
		`SELECT id, human_key, slug, created_ts FROM projects WHERE human_key = ?`, humanKey))
}

// ProjectBySlug looks up a project by its slug.
func (s *Store) ProjectBySlug(ctx context.Context, slug string) (Project, error) {
	return s.scanProject(s.db.QueryRowContext(ctx,
		`SELECT id, human_key, slug, created_ts FROM projects WHERE slug = ?`, slug))
}

// ListProjects returns every known project, ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, human_key, slug, created_ts FROM projects ORDER BY created_ts ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var createdTs int64
		if err := rows.Scan(&p.ID, &p.HumanKey, &p.Slug, &createdTs); err != nil {
			return nil, err
		}
		p.CreatedTs = timeOrZero(sql.NullInt64{Int64: createdTs, Valid: true})
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) scanProject(row *sql.Row) (Project, error) {
	var p Project
	var createdTs int64
	if err := row.Scan(&p.ID, &p.HumanKey, &p.Slug, &createdTs); err != nil {
		return Project{}, err
	}
	p.CreatedTs = timeOrZero(sql.NullInt64{Int64: createdTs, Valid: true})
	return p, nil
}
