package store

import (
	"context"
	"database/sql"
)

// RecordBuildStart inserts a new in-progress build row for record_build.
func (s *Store) RecordBuildStart(ctx context.Context, projectID int64, summaryJSON string) (Build, error) {
	now := Now()
	if summaryJSON == "" {
		summaryJSON = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (project_id, started_ts, status, summary_json) VALUES (?, ?, 'pending', ?)`,
		projectID, now.Unix(), summaryJSON)
	if err != nil {
		return Build{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Build{}, err
	}
	return Build{ID: id, ProjectID: projectID, StartedTs: now, Status: "pending", SummaryJSON: summaryJSON}, nil
}

// FinishBuild records a terminal status (pass/fail/error) and summary for an
// existing build row.
func (s *Store) FinishBuild(ctx context.Context, id int64, status, summaryJSON string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE builds SET finished_ts = ?, status = ?, summary_json = ? WHERE id = ?`,
		Now().Unix(), status, summaryJSON, id)
	return err
}

// RecentBuilds returns the most recent builds for a project, newest first.
func (s *Store) RecentBuilds(ctx context.Context, projectID int64, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, started_ts, finished_ts, status, summary_json
		FROM builds WHERE project_id = ? ORDER BY started_ts DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		var b Build
		var startedTs int64
		var finishedTs sql.NullInt64
		if err := rows.Scan(&b.ID, &b.ProjectID, &startedTs, &finishedTs, &b.Status, &b.SummaryJSON); err != nil {
			return nil, err
		}
		b.StartedTs = timeOrZero(sql.NullInt64{Int64: startedTs, Valid: true})
		b.FinishedTs = timeOrZero(finishedTs)
		out = append(out, b)
	}
	return out, rows.Err()
}
