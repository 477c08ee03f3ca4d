package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureProject_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p1, err := s.EnsureProject(ctx, "/abs/backend", "abs-backend")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.EnsureProject(ctx, "/abs/backend", "abs-backend")
	if err != nil {
		t.Fatal(err)
	}
	if p1.ID != p2.ID {
		t.Errorf("expected same project id, got %d and %d", p1.ID, p2.ID)
	}
}

func TestRegisterAgent_NameTaken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.EnsureProject(ctx, "/proj", "proj")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "GreenCastle"}); err != nil {
		t.Fatal(err)
	}

	taken, err := s.AgentNameTaken(ctx, p.ID, "GreenCastle")
	if err != nil {
		t.Fatal(err)
	}
	if !taken {
		t.Error("expected name to be taken")
	}

	taken, err = s.AgentNameTaken(ctx, p.ID, "BlueRiver")
	if err != nil {
		t.Fatal(err)
	}
	if taken {
		t.Error("expected name to be free")
	}
}

func TestInsertMessage_RecipientPrecedence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, _ := s.EnsureProject(ctx, "/proj", "proj")
	sender, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Sender"})
	alice, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Alice"})

	msg, err := s.InsertMessage(ctx, Message{
		ExternalID: "msg_test_1",
		ProjectID:  p.ID,
		Subject:    "hello",
		SenderID:   sender.ID,
	}, []RecipientInput{
		{AgentID: alice.ID, Kind: RecipientBCC},
		{AgentID: alice.ID, Kind: RecipientTo},
	})
	if err != nil {
		t.Fatal(err)
	}

	recips, err := s.Recipients(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recips) != 1 {
		t.Fatalf("expected 1 deduped recipient, got %d", len(recips))
	}
	if recips[0].Kind != RecipientTo {
		t.Errorf("expected 'to' to win over 'bcc', got %q", recips[0].Kind)
	}
}

func TestInbox_IsReadOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, _ := s.EnsureProject(ctx, "/proj", "proj")
	sender, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Sender"})
	alice, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Alice"})

	msg, err := s.InsertMessage(ctx, Message{
		ExternalID: "msg_test_2",
		ProjectID:  p.ID,
		Subject:    "hi",
		SenderID:   sender.ID,
	}, []RecipientInput{{AgentID: alice.ID, Kind: RecipientTo}})
	if err != nil {
		t.Fatal(err)
	}

	before, err := s.Inbox(ctx, alice.ID, InboxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	after, err := s.Inbox(ctx, alice.ID, InboxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("expected 1 message both times, got %d then %d", len(before), len(after))
	}

	recips, _ := s.Recipients(ctx, msg.ID)
	if !recips[0].ReadTs.IsZero() {
		t.Error("fetch_inbox must not mark messages read")
	}
}

func TestReservations_ExpireAndRelease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, _ := s.EnsureProject(ctx, "/proj", "proj")
	agent, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Agent"})

	now := Now()
	r, err := s.CreateReservation(ctx, Reservation{
		ProjectID: p.ID, AgentID: agent.ID, PathPattern: "app/**",
		Exclusive: true, ExpiresTs: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveReservations(ctx, p.ID, now.Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active reservation, got %d", len(active))
	}

	n, err := s.ExpireReservations(ctx, now.Add(2*time.Minute).Unix())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reservation expired, got %d", n)
	}

	active, err = s.ActiveReservations(ctx, p.ID, now.Add(2*time.Minute).Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("expected 0 active reservations after expiry, got %d", len(active))
	}

	if err := s.ReleaseReservation(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
}

func TestContacts_RequestAndApprove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, _ := s.EnsureProject(ctx, "/proj", "proj")
	a, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Alice"})
	b, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Bob"})

	if _, err := s.UpsertContactRequest(ctx, p.ID, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	ok, err := s.ApprovedContact(ctx, p.ID, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected pending contact to not be approved yet")
	}

	if err := s.DecideContact(ctx, p.ID, a.ID, b.ID, true, time.Time{}); err != nil {
		t.Fatal(err)
	}

	ok, err = s.ApprovedContact(ctx, p.ID, b.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected contact to be approved regardless of argument order")
	}
}

func TestSearchMessages_FallsBackOnBadSyntax(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, _ := s.EnsureProject(ctx, "/proj", "proj")
	sender, _ := s.RegisterAgent(ctx, Agent{ProjectID: p.ID, Name: "Sender"})
	if _, err := s.InsertMessage(ctx, Message{
		ExternalID: "msg_test_3", ProjectID: p.ID, Subject: "build failure", BodyMD: `the linker choked on "unterminated string`,
		SenderID: sender.ID,
	}, nil); err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchMessages(ctx, p.ID, `"unterminated`, 10, "")
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected fallback LIKE match, got %d results", len(results))
	}
}
