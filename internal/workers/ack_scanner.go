package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/config"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// AckScanner implements the ACK-TTL escalation worker (§4.8): it finds
// recipients of ack_required messages who have not acknowledged within the
// TTL and, on every run until they do, either logs a warning (log mode) or
// claims a
// symbolic reservation flagging the overdue message for operator
// attention (claim mode). The claimed path_pattern is not a real
// filesystem path — it names the overdue message so the reservation
// shows up in resource://claims alongside ordinary file reservations.
type AckScanner struct {
	Store  *store.Store
	Cfg    *config.AckConfig
	Logger *slog.Logger
}

func (w *AckScanner) Name() string { return "ack_scanner" }

func (w *AckScanner) Run(ctx context.Context) error {
	projects, err := w.Store.ListProjects(ctx)
	if err != nil {
		return err
	}

	olderThan := time.Now().Add(-time.Duration(w.Cfg.TTLSeconds) * time.Second).Unix()
	for _, p := range projects {
		overdue, err := w.Store.OverdueAcks(ctx, p.ID, olderThan)
		if err != nil {
			return fmt.Errorf("project %s: %w", p.Slug, err)
		}
		for _, rec := range overdue {
			if err := w.escalate(ctx, p, rec); err != nil {
				w.Logger.Error("ack escalation failed", "project", p.Slug, "message_id", rec.MessageID, "error", err)
			}
		}
	}
	return nil
}

func (w *AckScanner) escalate(ctx context.Context, p store.Project, rec store.Recipient) error {
	msg, err := w.Store.MessageByID(ctx, rec.MessageID)
	if err != nil {
		return err
	}

	if w.Cfg.EscalationMode != "claim" {
		w.Logger.Warn("ack overdue",
			"project", p.Slug, "message_id", msg.ExternalID, "subject", msg.Subject,
			"recipient_agent_id", rec.AgentID, "created_ts", msg.CreatedTs)
		return nil
	}

	holder, err := w.ensureOpsAgent(ctx, p.ID)
	if err != nil {
		return err
	}
	_, err = w.Store.CreateReservation(ctx, store.Reservation{
		ProjectID:   p.ID,
		AgentID:     holder.ID,
		PathPattern: fmt.Sprintf("ack-escalation:%s", msg.ExternalID),
		Exclusive:   w.Cfg.ClaimExclusive,
		Reason:      fmt.Sprintf("overdue ack on message %s", msg.ExternalID),
		ExpiresTs:   time.Now().Add(time.Duration(w.Cfg.ClaimTTLSeconds) * time.Second),
	})
	return err
}

func (w *AckScanner) ensureOpsAgent(ctx context.Context, projectID int64) (store.Agent, error) {
	if a, err := w.Store.AgentByName(ctx, projectID, w.Cfg.ClaimHolderName); err == nil {
		return a, nil
	}
	return w.Store.RegisterAgent(ctx, store.Agent{
		ProjectID:     projectID,
		Name:          w.Cfg.ClaimHolderName,
		Program:       "agentmail",
		Task:          "ack-ttl escalation",
		ContactPolicy: "block_all",
	})
}
