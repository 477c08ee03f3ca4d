package contacts

import (
	"context"
	"fmt"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// RequestContact creates or refreshes a pending contact link from requester
// to target. Callers are responsible for delivering the ack-required intro
// message (messaging.Engine.Send with SendRequest.Bypass set); this function only
// updates the link state.
func (e *Engine) RequestContact(ctx context.Context, projectID, requester, target int64) (store.Contact, error) {
	return e.Store.UpsertContactRequest(ctx, projectID, requester, target)
}

// RespondContact transitions a pending link to approved or denied. On
// approval, expires_ts is set to now + ttl (default DefaultContactTTL).
func (e *Engine) RespondContact(ctx context.Context, projectID, responder, requester int64, accept bool, ttl time.Duration) error {
	var expiresAt time.Time
	if accept {
		if ttl <= 0 {
			ttl = DefaultContactTTL
		}
		expiresAt = time.Now().UTC().Add(ttl)
	}
	if err := e.Store.DecideContact(ctx, projectID, responder, requester, accept, expiresAt); err != nil {
		return fmt.Errorf("decide contact: %w", err)
	}
	return nil
}

// ListContacts returns every contact link touching agentID.
func (e *Engine) ListContacts(ctx context.Context, projectID, agentID int64) ([]store.Contact, error) {
	return e.Store.ListContacts(ctx, projectID, agentID)
}
