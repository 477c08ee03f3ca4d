// Package contacts implements the Contact Policy Engine: per-agent policies
// and auto-allow heuristics gating cross-agent messaging.
package contacts

import (
	"context"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/reservations"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// DirectMessageWindow bounds how far back a prior direct message still
// counts toward the "auto" policy's allow heuristics.
const DirectMessageWindow = 30 * 24 * time.Hour

const DefaultContactTTL = 30 * 24 * time.Hour

// Engine evaluates whether sender may message recipient under recipient's
// contact_policy.
type Engine struct {
	Store *store.Store
	// TreeRoot is the project's archive checkout, used by
	// reservations.Overlap's filesystem probe. Optional: empty disables the
	// probe step and falls back to the static overlap checks.
	TreeRoot string
}

// Allow implements §4.7: it returns nil if sender may message recipient,
// or an *apperr.Error (CONTACT_BLOCKED / CONTACT_CONSENT_REQUIRED) if not.
func (e *Engine) Allow(ctx context.Context, projectID int64, sender, recipient store.Agent, threadID string) error {
	switch recipient.ContactPolicy {
	case "open":
		return nil
	case "block_all":
		approved, err := e.Store.ApprovedContact(ctx, projectID, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if approved {
			return nil
		}
		return apperr.New(apperr.ContactBlocked, "%s blocks new contacts", recipient.Name)
	case "contacts_only":
		approved, err := e.Store.ApprovedContact(ctx, projectID, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if approved {
			return nil
		}
		return apperr.New(apperr.ContactConsent, "%s requires an approved contact link", recipient.Name)
	default: // "auto"
		ok, err := e.autoAllow(ctx, projectID, sender, recipient, threadID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return apperr.New(apperr.ContactConsent, "%s has not interacted with %s recently enough for auto-allow", sender.Name, recipient.Name)
	}
}

func (e *Engine) autoAllow(ctx context.Context, projectID int64, sender, recipient store.Agent, threadID string) (bool, error) {
	if approved, err := e.Store.ApprovedContact(ctx, projectID, sender.ID, recipient.ID); err != nil {
		return false, err
	} else if approved {
		return true, nil
	}

	if threadID != "" {
		participants, err := e.Store.ThreadMessages(ctx, projectID, threadID)
		if err != nil {
			return false, err
		}
		for _, m := range participants {
			if m.SenderID == recipient.ID || m.SenderID == sender.ID {
				recips, err := e.Store.Recipients(ctx, m.ID)
				if err != nil {
					return false, err
				}
				if threadIncludesBoth(m, recips, sender.ID, recipient.ID) {
					return true, nil
				}
			}
		}
	}

	if overlapping, err := e.shareActiveReservation(ctx, projectID, sender.ID, recipient.ID); err != nil {
		return false, err
	} else if overlapping {
		return true, nil
	}

	return e.hasPriorDirectMessage(ctx, projectID, sender.ID, recipient.ID)
}

func threadIncludesBoth(m store.Message, recips []store.Recipient, a, b int64) bool {
	seen := map[int64]bool{m.SenderID: true}
	for _, r := range recips {
		seen[r.AgentID] = true
	}
	return seen[a] && seen[b]
}

// shareActiveReservation reports whether a and b each hold an active
// reservation whose patterns overlap (per §4.7: "both agents hold
// overlapping active reservations in the project"), not merely whether each
// holds some reservation somewhere.
func (e *Engine) shareActiveReservation(ctx context.Context, projectID, a, b int64) (bool, error) {
	now := store.Now().Unix()
	resA, err := e.Store.AgentReservations(ctx, projectID, a, now)
	if err != nil {
		return false, err
	}
	resB, err := e.Store.AgentReservations(ctx, projectID, b, now)
	if err != nil {
		return false, err
	}
	for _, ra := range resA {
		for _, rb := range resB {
			overlaps, err := reservations.Overlap(e.TreeRoot, ra.PathPattern, rb.PathPattern)
			if err != nil {
				return false, err
			}
			if overlaps {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *Engine) hasPriorDirectMessage(ctx context.Context, projectID, a, b int64) (bool, error) {
	cutoff := store.Now().Add(-DirectMessageWindow).Unix()
	recipsOfA, err := recipientMessagesFrom(ctx, e.Store, projectID, a, b)
	if err != nil {
		return false, err
	}
	for _, created := range recipsOfA {
		if created >= cutoff {
			return true, nil
		}
	}
	recipsOfB, err := recipientMessagesFrom(ctx, e.Store, projectID, b, a)
	if err != nil {
		return false, err
	}
	for _, created := range recipsOfB {
		if created >= cutoff {
			return true, nil
		}
	}
	return false, nil
}

// recipientMessagesFrom returns created_ts (unix) for every message sent by
// sender where recipient is a recipient, used by the prior-direct-message
// auto-allow heuristic.
func recipientMessagesFrom(ctx context.Context, s *store.Store, projectID, sender, recipient int64) ([]int64, error) {
	inbox, err := s.Inbox(ctx, recipient, store.InboxFilter{})
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, m := range inbox {
		if m.ProjectID == projectID && m.SenderID == sender {
			out = append(out, m.CreatedTs.Unix())
		}
	}
	return out, nil
}
