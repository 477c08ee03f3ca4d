package store

import (
	"context"
	"database/sql"
)

// RecipientInput is one fan-out target supplied by send_message/reply_message.
type RecipientInput struct {
	AgentID int64
	Kind    RecipientKind
}

// InsertMessage writes a message row and its deduplicated recipient fan-out
// (to > cc > bcc precedence: an agent named in more than one list is kept
// only under its highest-precedence kind) inside a single transaction.
func (s *Store) InsertMessage(ctx context.Context, m Message, recipients []RecipientInput) (Message, error) {
	m.CreatedTs = Now()
	dedup := dedupeRecipients(recipients)

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (external_id, project_id, thread_id, subject, body_md, sender_id, created_ts, importance, ack_required, attachments_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ExternalID, m.ProjectID, nullString(m.ThreadID), m.Subject, m.BodyMD, m.SenderID,
			m.CreatedTs.Unix(), m.Importance, boolToInt(m.AckRequired), m.AttachmentsJSON)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		m.ID = id

		for _, r := range dedup {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO message_recipients (message_id, agent_id, kind) VALUES (?, ?, ?)`,
				m.ID, r.AgentID, string(r.Kind)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// dedupeRecipients keeps each agent under its single highest-precedence
// recipient kind (to > cc > bcc), matching the spec's fan-out precedence.
func dedupeRecipients(in []RecipientInput) []RecipientInput {
	rank := map[RecipientKind]int{RecipientTo: 0, RecipientCC: 1, RecipientBCC: 2}
	best := make(map[int64]RecipientInput)
	order := make([]int64, 0, len(in))
	for _, r := range in {
		prev, ok := best[r.AgentID]
		if !ok {
			order = append(order, r.AgentID)
			best[r.AgentID] = r
			continue
		}
		if rank[r.Kind] < rank[prev.Kind] {
			best[r.AgentID] = r
		}
	}
	out := make([]RecipientInput, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const messageSelect = `SELECT id, external_id, project_id, COALESCE(thread_id, ''), subject, body_md, sender_id, created_ts, importance, ack_required, attachments_json FROM messages`

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	var createdTs int64
	var ackRequired int
	if err := row.Scan(&m.ID, &m.ExternalID, &m.ProjectID, &m.ThreadID, &m.Subject, &m.BodyMD,
		&m.SenderID, &createdTs, &m.Importance, &ackRequired, &m.AttachmentsJSON); err != nil {
		return Message{}, err
	}
	m.CreatedTs = timeOrZero(sql.NullInt64{Int64: createdTs, Valid: true})
	m.AckRequired = ackRequired != 0
	return m, nil
}

// MessageByExternalID looks up a message by its external (archive-facing) id.
func (s *Store) MessageByExternalID(ctx context.Context, externalID string) (Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx, messageSelect+` WHERE external_id = ?`, externalID))
}

// MessageByID looks up a message by its internal primary key, used to
// resolve the message rows behind Recipient-shaped query results such as
// OverdueAcks.
func (s *Store) MessageByID(ctx context.Context, id int64) (Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx, messageSelect+` WHERE id = ?`, id))
}

// ThreadMessages returns every message in a thread, oldest first: the root
// (whose external id is threadID) and every message whose thread_id is
// threadID.
func (s *Store) ThreadMessages(ctx context.Context, projectID int64, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		messageSelect+` WHERE project_id = ? AND (thread_id = ? OR external_id = ?) ORDER BY created_ts ASC`, projectID, threadID, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InboxFilter narrows fetch_inbox results.
type InboxFilter struct {
	UnreadOnly  bool
	UrgentOnly  bool
	AckRequired bool
	SinceTs     int64
	Limit       int
}

// Inbox implements fetch_inbox: it is read-only and never mutates read_ts.
func (s *Store) Inbox(ctx context.Context, agentID int64, f InboxFilter) ([]Message, error) {
	q := messageSelect + `
		JOIN message_recipients mr ON mr.message_id = messages.id
		WHERE mr.agent_id = ?`
	args := []any{agentID}
	if f.UnreadOnly {
		q += ` AND mr.read_ts IS NULL`
	}
	if f.AckRequired {
		q += ` AND messages.ack_required = 1`
	}
	if f.UrgentOnly {
		q += ` AND messages.importance = 'urgent'`
	}
	if f.SinceTs > 0 {
		q += ` AND messages.created_ts > ?`
		args = append(args, f.SinceTs)
	}
	q += ` ORDER BY messages.created_ts DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// OutboxFilter narrows resource://outbox/{agent} results.
type OutboxFilter struct {
	SinceTs int64
	Limit   int
}

// Outbox returns messages sent by agentID, most recent first.
func (s *Store) Outbox(ctx context.Context, agentID int64, f OutboxFilter) ([]Message, error) {
	q := messageSelect + ` WHERE sender_id = ?`
	args := []any{agentID}
	if f.SinceTs > 0 {
		q += ` AND created_ts > ?`
		args = append(args, f.SinceTs)
	}
	q += ` ORDER BY created_ts DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// UnreadCounts returns, for every agent in projectID with at least one
// unread message, the count of recipient rows with read_ts still unset.
// Used by resource://agents/{slug}.
func (s *Store) UnreadCounts(ctx context.Context, projectID int64) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mr.agent_id, COUNT(*)
		FROM message_recipients mr
		JOIN messages m ON m.id = mr.message_id
		WHERE m.project_id = ? AND mr.read_ts IS NULL
		GROUP BY mr.agent_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var agentID int64
		var count int
		if err := rows.Scan(&agentID, &count); err != nil {
			return nil, err
		}
		out[agentID] = count
	}
	return out, rows.Err()
}

// MarkRead sets read_ts for (message, agent) if not already set; it is
// idempotent, matching mark_message_read's repeatable-call requirement.
func (s *Store) MarkRead(ctx context.Context, messageID, agentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE message_recipients SET read_ts = ? WHERE message_id = ? AND agent_id = ? AND read_ts IS NULL`,
		Now().Unix(), messageID, agentID)
	return err
}

// Acknowledge sets ack_ts for (message, agent) if not already set.
func (s *Store) Acknowledge(ctx context.Context, messageID, agentID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE message_recipients SET ack_ts = ? WHERE message_id = ? AND agent_id = ? AND ack_ts IS NULL`,
		Now().Unix(), messageID, agentID)
	return err
}

// Recipients returns the recipient rows for a message.
func (s *Store) Recipients(ctx context.Context, messageID int64) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, agent_id, kind, read_ts, ack_ts FROM message_recipients WHERE message_id = ?`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		var kind string
		var readTs, ackTs sql.NullInt64
		if err := rows.Scan(&r.MessageID, &r.AgentID, &kind, &readTs, &ackTs); err != nil {
			return nil, err
		}
		r.Kind = RecipientKind(kind)
		r.ReadTs = timeOrZero(readTs)
		r.AckTs = timeOrZero(ackTs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// OverdueAcks returns recipients of ack_required messages created before
// olderThan that have not acknowledged, used by the ACK-TTL background
// worker. Past escalations are not recorded, so a recipient is returned on
// every call until it acknowledges.
func (s *Store) OverdueAcks(ctx context.Context, projectID int64, olderThan int64) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mr.message_id, mr.agent_id, mr.kind, mr.read_ts, mr.ack_ts
		FROM message_recipients mr
		JOIN messages m ON m.id = mr.message_id
		WHERE m.project_id = ? AND m.ack_required = 1 AND mr.ack_ts IS NULL AND m.created_ts < ?`,
		projectID, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var r Recipient
		var kind string
		var readTs, ackTs sql.NullInt64
		if err := rows.Scan(&r.MessageID, &r.AgentID, &kind, &readTs, &ackTs); err != nil {
			return nil, err
		}
		r.Kind = RecipientKind(kind)
		r.ReadTs = timeOrZero(readTs)
		r.AckTs = timeOrZero(ackTs)
		out = append(out, r)
	}
	return out, rows.Err()
}
