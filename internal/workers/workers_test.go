package workers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/config"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/store"
	"github.com/Dicklesworthstone/agentmail/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) (*store.Store, store.Project) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	p, err := s.EnsureProject(context.Background(), "/repo/workers", "workers")
	if err != nil {
		t.Fatal(err)
	}
	return s, p
}

func overdueAckMessage(t *testing.T, s *store.Store, p store.Project) (store.Agent, store.Recipient) {
	t.Helper()
	ctx := context.Background()
	sender, err := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "sender"})
	if err != nil {
		t.Fatal(err)
	}
	recipient, err := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "recipient", ContactPolicy: "open"})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := s.InsertMessage(ctx, store.Message{
		ProjectID:   p.ID,
		SenderID:    sender.ID,
		ExternalID:  "msg-overdue-1",
		Subject:     "please ack",
		BodyMD:      "body",
		Importance:  "normal",
		AckRequired: true,
	}, []store.RecipientInput{{AgentID: recipient.ID, Kind: store.RecipientTo}})
	if err != nil {
		t.Fatal(err)
	}

	recs, err := s.Recipients(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	return sender, recs[0]
}

func TestAckScanner_LogModeDoesNotClaim(t *testing.T) {
	s, p := openTestStore(t)
	overdueAckMessage(t, s, p)

	w := &AckScanner{
		Store: s,
		Cfg: &config.AckConfig{
			TTLSeconds:     -60, // force everything to already be overdue
			EscalationMode: "log",
		},
		Logger: testLogger(),
	}
	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveReservations(context.Background(), p.ID, time.Now().Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("log mode should not create reservations, found %d", len(active))
	}
}

func TestAckScanner_ClaimModeCreatesSymbolicReservation(t *testing.T) {
	s, p := openTestStore(t)
	overdueAckMessage(t, s, p)

	w := &AckScanner{
		Store: s,
		Cfg: &config.AckConfig{
			TTLSeconds:      -60,
			EscalationMode:  "claim",
			ClaimTTLSeconds: 3600,
			ClaimHolderName: "ops-bot",
		},
		Logger: testLogger(),
	}
	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveReservations(context.Background(), p.ID, time.Now().Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one symbolic reservation, got %d", len(active))
	}
	if active[0].PathPattern != "ack-escalation:msg-overdue-1" {
		t.Errorf("unexpected path pattern %q", active[0].PathPattern)
	}
}

func TestAckScanner_ClaimModeReusesOpsAgentAcrossRuns(t *testing.T) {
	s, p := openTestStore(t)
	overdueAckMessage(t, s, p)

	w := &AckScanner{
		Store: s,
		Cfg: &config.AckConfig{
			TTLSeconds:      -60,
			EscalationMode:  "claim",
			ClaimTTLSeconds: 3600,
			ClaimHolderName: "ops-bot",
		},
		Logger: testLogger(),
	}
	ctx := context.Background()
	if err := w.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(ctx); err != nil {
		t.Fatal(err)
	}

	agent, err := s.AgentByName(ctx, p.ID, "ops-bot")
	if err != nil {
		t.Fatalf("expected the ops agent to be reused across runs: %v", err)
	}
	if agent.ContactPolicy != "block_all" {
		t.Errorf("expected the ops agent to be registered with block_all, got %q", agent.ContactPolicy)
	}
}

func TestReservationExpiry_ReleasesPastReservations(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	agent, err := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReservation(ctx, store.Reservation{
		ProjectID:   p.ID,
		AgentID:     agent.ID,
		PathPattern: "src/**",
		Exclusive:   true,
		ExpiresTs:   time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	w := &ReservationExpiry{Store: s, Logger: testLogger()}
	if err := w.Run(ctx); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveReservations(ctx, p.ID, time.Now().Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("expected the expired reservation to be released, found %d active", len(active))
	}
}

func TestReservationExpiry_LeavesUnexpiredReservations(t *testing.T) {
	s, p := openTestStore(t)
	ctx := context.Background()
	agent, err := s.RegisterAgent(ctx, store.Agent{ProjectID: p.ID, Name: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReservation(ctx, store.Reservation{
		ProjectID:   p.ID,
		AgentID:     agent.ID,
		PathPattern: "src/**",
		Exclusive:   true,
		ExpiresTs:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	w := &ReservationExpiry{Store: s, Logger: testLogger()}
	if err := w.Run(ctx); err != nil {
		t.Fatal(err)
	}

	active, err := s.ActiveReservations(ctx, p.ID, time.Now().Unix())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Errorf("expected the unexpired reservation to remain active, found %d", len(active))
	}
}

func TestScheduler_RunsJobUntilContextCancelled(t *testing.T) {
	done := make(chan struct{}, 1)
	job := &countingJob{done: done}

	s := NewScheduler(testLogger())
	s.AddJob(job, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	default:
		t.Error("expected the job to run at least once before the scheduler stopped")
	}
}

type countingJob struct {
	done chan struct{}
}

func (j *countingJob) Name() string { return "counting_job" }
func (j *countingJob) Run(ctx context.Context) error {
	select {
	case j.done <- struct{}{}:
	default:
	}
	return nil
}

func TestMetricsSnapshot_TracksDeltaAcrossRuns(t *testing.T) {
	s, _ := openTestStore(t)
	registry := mcp.NewRegistry()
	deps := tools.NewDeps(s, &config.Config{
		Storage: config.StorageConfig{Root: t.TempDir()},
		Search:  config.SearchConfig{DigestCacheTTLSeconds: 60, DigestCacheMaxEntries: 10},
	}, testLogger())
	registry.Register(&tools.EnsureProject{Deps: deps})

	snapshot := &MetricsSnapshot{Registry: registry, Logger: testLogger()}
	if err := snapshot.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := registry.Call(ctx, "ensure_project", []byte(`{"human_key":"/repo/snapshot"}`), true); err != nil {
		t.Fatal(err)
	}

	if err := snapshot.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if snapshot.seenCalls["ensure_project"] != 1 {
		t.Errorf("expected the snapshot to have observed 1 call, got %d", snapshot.seenCalls["ensure_project"])
	}
}
