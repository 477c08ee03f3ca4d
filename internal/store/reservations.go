package store

import (
	"context"
	"database/sql"
)

// CreateReservation inserts a new active reservation row.
func (s *Store) CreateReservation(ctx context.Context, r Reservation) (Reservation, error) {
	r.CreatedTs = Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (project_id, agent_id, path_pattern, exclusive, reason, created_ts, expires_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ProjectID, r.AgentID, r.PathPattern, boolToInt(r.Exclusive), r.Reason,
		r.CreatedTs.Unix(), r.ExpiresTs.Unix())
	if err != nil {
		return Reservation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Reservation{}, err
	}
	r.ID = id
	return r, nil
}

const reservationSelect = `SELECT id, project_id, agent_id, path_pattern, exclusive, reason, created_ts, expires_ts, released_ts FROM reservations`

func scanReservation(row rowScanner) (Reservation, error) {
	var r Reservation
	var exclusive int
	var createdTs, expiresTs int64
	var releasedTs sql.NullInt64
	if err := row.Scan(&r.ID, &r.ProjectID, &r.AgentID, &r.PathPattern, &exclusive, &r.Reason,
		&createdTs, &expiresTs, &releasedTs); err != nil {
		return Reservation{}, err
	}
	r.Exclusive = exclusive != 0
	r.CreatedTs = timeOrZero(sql.NullInt64{Int64: createdTs, Valid: true})
	r.ExpiresTs = timeOrZero(sql.NullInt64{Int64: expiresTs, Valid: true})
	r.ReleasedTs = timeOrZero(releasedTs)
	return r, nil
}

// ActiveReservations returns every non-released, non-expired reservation in
// a project as of now, used by the overlap check before granting a new one.
func (s *Store) ActiveReservations(ctx context.Context, projectID int64, now int64) ([]Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		reservationSelect+` WHERE project_id = ? AND released_ts IS NULL AND expires_ts > ?`, projectID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllReservations returns every reservation in a project regardless of
// release/expiry state, newest first, used by resource://claims/{slug} with
// active_only=false.
func (s *Store) AllReservations(ctx context.Context, projectID int64) ([]Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		reservationSelect+` WHERE project_id = ? ORDER BY created_ts DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AgentReservations returns every active reservation held by a single agent.
func (s *Store) AgentReservations(ctx context.Context, projectID, agentID int64, now int64) ([]Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		reservationSelect+` WHERE project_id = ? AND agent_id = ? AND released_ts IS NULL AND expires_ts > ?`,
		projectID, agentID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReservationByID fetches a single reservation.
func (s *Store) ReservationByID(ctx context.Context, id int64) (Reservation, error) {
	return scanReservation(s.db.QueryRowContext(ctx, reservationSelect+` WHERE id = ?`, id))
}

// ReleaseReservation marks a reservation released as of now, if not already.
func (s *Store) ReleaseReservation(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET released_ts = ? WHERE id = ? AND released_ts IS NULL`, Now().Unix(), id)
	return err
}

// RenewReservation sets a non-released reservation's expiry to newExpiry
// (epoch seconds) exactly as given; no minimum or maximum TTL is applied.
func (s *Store) RenewReservation(ctx context.Context, id int64, newExpiry int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET expires_ts = ? WHERE id = ? AND released_ts IS NULL`, newExpiry, id)
	return err
}

// ExpireReservations releases every reservation whose expiry has passed,
// returning how many rows were touched. Used by the reservation-expiry
// background worker.
func (s *Store) ExpireReservations(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET released_ts = ? WHERE released_ts IS NULL AND expires_ts <= ?`, now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
