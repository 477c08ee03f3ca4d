package store

import (
	"context"
	"database/sql"
	"strings"
)

// SearchResult pairs a matched message with its BM25 rank (lower is more
// relevant, matching SQLite FTS5's convention).
type SearchResult struct {
	Message Message
	Rank    float64
}

// SearchMessages runs query against the messages_fts index, falling back to
// a plain LIKE scan when query does not parse as valid FTS5 syntax (bare
// punctuation, unbalanced quotes) so search_messages never hard-fails on
// loose input.
func (s *Store) SearchMessages(ctx context.Context, projectID int64, query string, limit int, order string) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	orderBy := "f.rank"
	if order == "recent" {
		orderBy = "m.created_ts DESC"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.external_id, m.project_id, COALESCE(m.thread_id, ''), m.subject, m.body_md,
		       m.sender_id, m.created_ts, m.importance, m.ack_required, m.attachments_json, f.rank
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ? AND m.project_id = ?
		ORDER BY `+orderBy+`
		LIMIT ?`, query, projectID, limit)
	if err != nil {
		return s.searchMessagesLike(ctx, projectID, query, limit, order)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var sr SearchResult
		var createdTs int64
		var ackRequired int
		if err := rows.Scan(&sr.Message.ID, &sr.Message.ExternalID, &sr.Message.ProjectID, &sr.Message.ThreadID,
			&sr.Message.Subject, &sr.Message.BodyMD, &sr.Message.SenderID, &createdTs, &sr.Message.Importance,
			&ackRequired, &sr.Message.AttachmentsJSON, &sr.Rank); err != nil {
			return nil, err
		}
		sr.Message.CreatedTs = timeOrZero(sql.NullInt64{Int64: createdTs, Valid: true})
		sr.Message.AckRequired = ackRequired != 0
		out = append(out, sr)
	}
	return out, rows.Err()
}

// searchMessagesLike is the degraded-syntax fallback: a substring match over
// subject and body, unranked beyond recency.
func (s *Store) searchMessagesLike(ctx context.Context, projectID int64, query string, limit int, order string) ([]SearchResult, error) {
	_ = order // the LIKE fallback has no relevance ranking to offer; always recency-ordered
	like := "%" + strings.ReplaceAll(query, "%", "") + "%"
	rows, err := s.db.QueryContext(ctx,
		messageSelect+` WHERE project_id = ? AND (subject LIKE ? OR body_md LIKE ?) ORDER BY created_ts DESC LIMIT ?`,
		projectID, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, SearchResult{Message: m})
	}
	return out, rows.Err()
}
