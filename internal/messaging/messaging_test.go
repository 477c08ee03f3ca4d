package messaging

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/attachments"
	"github.com/Dicklesworthstone/agentmail/internal/contacts"
	"github.com/Dicklesworthstone/agentmail/internal/gitrepo"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, store.Project) {
	t.Helper()
	dir := t.TempDir()

	s, err := store.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	p, err := s.EnsureProject(context.Background(), "/proj", "proj")
	if err != nil {
		t.Fatal(err)
	}

	tree := archive.New(dir, p.Slug)
	repo, err := gitrepo.Open(tree.Root)
	if err != nil {
		t.Fatal(err)
	}

	pipeline := attachments.New(attachments.Options{ProjectRoot: dir, Tree: tree})

	return &Engine{
		Store: s, Tree: tree, Repo: repo,
		Contacts: &contacts.Engine{Store: s},
		Pipeline: pipeline,
	}, s, p
}

func TestSend_DeliversToOpenPolicyRecipient(t *testing.T) {
	eng, s, p := newTestEngine(t)
	ctx := context.Background()
	alice, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	bob, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "open"})

	res, err := eng.Send(ctx, SendRequest{
		ProjectID: p.ID, Sender: alice, Recipients: RecipientSpec{To: []string{bob.Name}},
		Subject: "status", BodyMD: "all green",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deliveries) != 1 || !res.Deliveries[0].Delivered {
		t.Fatalf("expected 1 delivery, got %+v", res.Deliveries)
	}
	if len(res.Blocked) != 0 {
		t.Errorf("expected no blocked recipients, got %v", res.Blocked)
	}
}

func TestSend_BlocksStrangerUnderAutoPolicy(t *testing.T) {
	eng, s, p := newTestEngine(t)
	ctx := context.Background()
	alice, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	bob, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob"})

	res, err := eng.Send(ctx, SendRequest{
		ProjectID: p.ID, Sender: alice, Recipients: RecipientSpec{To: []string{bob.Name}},
		Subject: "status", BodyMD: "all green",
	})
	if err == nil {
		t.Fatalf("expected send to fail when the only recipient is blocked, got %+v", res)
	}
	if len(res.Blocked) != 1 {
		t.Errorf("expected bob reported blocked, got %v", res.Blocked)
	}
}

func TestSend_RejectsEmptySubjectAndBodyWithoutAttachment(t *testing.T) {
	eng, s, p := newTestEngine(t)
	ctx := context.Background()
	alice, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	bob, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "open"})

	_, err := eng.Send(ctx, SendRequest{
		ProjectID: p.ID, Sender: alice, Recipients: RecipientSpec{To: []string{bob.Name}},
	})
	if err == nil {
		t.Fatal("expected empty subject and body with no attachment to be rejected")
	}
}

func TestReply_InheritsThreadAndPrefixesSubjectOnce(t *testing.T) {
	eng, s, p := newTestEngine(t)
	ctx := context.Background()
	alice, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	bob, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "open"})

	sent, err := eng.Send(ctx, SendRequest{
		ProjectID: p.ID, Sender: alice, Recipients: RecipientSpec{To: []string{bob.Name}},
		Subject: "status", BodyMD: "all green",
	})
	if err != nil {
		t.Fatal(err)
	}

	reply, err := eng.Reply(ctx, ReplyRequest{
		ProjectID: p.ID, Sender: bob, ParentMsgID: sent.Message.ExternalID, BodyMD: "thanks",
		Recipients: RecipientSpec{To: []string{alice.Name}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Message.ThreadID != sent.Message.ExternalID {
		t.Errorf("expected reply thread_id to equal parent id, got %q", reply.Message.ThreadID)
	}
	if reply.Message.Subject != "Re: status" {
		t.Errorf("expected 'Re: status', got %q", reply.Message.Subject)
	}

	reply2, err := eng.Reply(ctx, ReplyRequest{
		ProjectID: p.ID, Sender: alice, ParentMsgID: reply.Message.ExternalID, BodyMD: "np",
		Recipients: RecipientSpec{To: []string{bob.Name}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply2.Message.Subject != "Re: status" {
		t.Errorf("expected no double prefixing, got %q", reply2.Message.Subject)
	}
}

func TestMarkRead_IsIdempotent(t *testing.T) {
	eng, s, p := newTestEngine(t)
	ctx := context.Background()
	alice, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Alice"})
	bob, _ := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "Bob", ContactPolicy: "open"})

	sent, err := eng.Send(ctx, SendRequest{
		ProjectID: p.ID, Sender: alice, Recipients: RecipientSpec{To: []string{bob.Name}},
		Subject: "status", BodyMD: "all green",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := eng.MarkRead(ctx, sent.Message.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	if err := eng.MarkRead(ctx, sent.Message.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
}
