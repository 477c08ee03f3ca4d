package contacts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, store.Project) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	p, err := s.EnsureProject(context.Background(), "/proj", "proj")
	if err != nil {
		t.Fatal(err)
	}
	return &Engine{Store: s}, s, p
}

func TestAllow_OpenPolicy(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	sender, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	recipient, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "open"})

	if err := e.Allow(ctx, p.ID, sender, recipient, ""); err != nil {
		t.Errorf("expected open policy to allow, got %v", err)
	}
}

func TestAllow_BlockAllWithoutApprovedLink(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	sender, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	recipient, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "block_all"})

	err := e.Allow(ctx, p.ID, sender, recipient, "")
	if apperr.KindOf(err) != apperr.ContactBlocked {
		t.Fatalf("expected CONTACT_BLOCKED, got %v", err)
	}
}

func TestAllow_ContactsOnlyRequiresApproval(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	sender, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	recipient, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "contacts_only"})

	if err := e.Allow(ctx, p.ID, sender, recipient, ""); apperr.KindOf(err) != apperr.ContactConsent {
		t.Fatalf("expected CONTACT_CONSENT_REQUIRED before approval, got %v", err)
	}

	if _, err := e.RequestContact(ctx, p.ID, sender.ID, recipient.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.RespondContact(ctx, p.ID, recipient.ID, sender.ID, true, 0); err != nil {
		t.Fatal(err)
	}

	if err := e.Allow(ctx, p.ID, sender, recipient, ""); err != nil {
		t.Errorf("expected approved contact to allow, got %v", err)
	}
}

func TestAllow_AutoPolicyBlocksStrangers(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	sender, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	recipient, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob"})

	if err := e.Allow(ctx, p.ID, sender, recipient, ""); apperr.KindOf(err) != apperr.ContactConsent {
		t.Fatalf("expected CONTACT_CONSENT_REQUIRED for strangers under auto policy, got %v", err)
	}
}

func TestAllow_AutoPolicyAllowsSharedThread(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	sender, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	recipient, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob"})

	if _, err := s.InsertMessage(ctx, store.Message{
		ExternalID: "msg_1", ProjectID: p.ID, ThreadID: "t1", Subject: "hi", SenderID: sender.ID,
	}, []store.RecipientInput{{AgentID: recipient.ID, Kind: store.RecipientTo}}); err != nil {
		t.Fatal(err)
	}

	if err := e.Allow(ctx, p.ID, sender, recipient, "t1"); err != nil {
		t.Errorf("expected shared thread participation to allow, got %v", err)
	}
}

func TestAllow_AutoPolicyRequiresOverlappingReservations(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	sender, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	recipient, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob"})

	now := store.Now()
	if _, err := s.CreateReservation(ctx, store.Reservation{
		ProjectID: p.ID, AgentID: sender.ID, PathPattern: "app/**", ExpiresTs: now.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReservation(ctx, store.Reservation{
		ProjectID: p.ID, AgentID: recipient.ID, PathPattern: "docs/**", ExpiresTs: now.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	// Disjoint reservations (app/** vs docs/**) must NOT auto-allow.
	if err := e.Allow(ctx, p.ID, sender, recipient, ""); apperr.KindOf(err) != apperr.ContactConsent {
		t.Fatalf("expected non-overlapping reservations to still require consent, got %v", err)
	}

	if _, err := s.CreateReservation(ctx, store.Reservation{
		ProjectID: p.ID, AgentID: recipient.ID, PathPattern: "app/api/*.py", ExpiresTs: now.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	// Now Bob also holds a reservation whose pattern overlaps Alice's app/**.
	if err := e.Allow(ctx, p.ID, sender, recipient, ""); err != nil {
		t.Errorf("expected overlapping reservations to auto-allow, got %v", err)
	}
}

func TestListContacts(t *testing.T) {
	e, s, p := newTestEngine(t)
	ctx := context.Background()
	a, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	b, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob"})

	if _, err := e.RequestContact(ctx, p.ID, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	links, err := e.ListContacts(ctx, p.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
}
