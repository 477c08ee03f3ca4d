package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/agentmail/internal/config"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	dir := t.TempDir()

	s, err := store.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{
		Storage:     config.StorageConfig{Root: dir},
		Attachments: config.AttachmentsConfig{InlineImageMaxBytes: 64 * 1024},
		Search:      config.SearchConfig{DigestCacheTTLSeconds: 60, DigestCacheMaxEntries: 100},
	}
	return NewDeps(s, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func ensureProject(t *testing.T, deps *Deps, humanKey string) store.Project {
	t.Helper()
	tool := &EnsureProject{Deps: deps}
	res, err := tool.Execute(context.Background(), mustJSON(t, ensureProjectParams{HumanKey: humanKey}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("ensure_project failed: %+v", res.Content)
	}
	p, err := deps.Store.ProjectByHumanKey(context.Background(), humanKey)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func registerAgent(t *testing.T, deps *Deps, project store.Project, nameHint string) store.Agent {
	t.Helper()
	tool := &RegisterAgent{Deps: deps}
	res, err := tool.Execute(context.Background(), mustJSON(t, registerAgentParams{
		Project: project.Slug, NameHint: nameHint,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("register_agent failed: %+v", res.Content)
	}
	agent, err := deps.Store.AgentByName(context.Background(), project.ID, nameHint)
	if err != nil {
		t.Fatal(err)
	}
	return agent
}

func TestEnsureProject_IdempotentAcrossCalls(t *testing.T) {
	deps := newTestDeps(t)
	p1 := ensureProject(t, deps, "/repo/a")
	p2 := ensureProject(t, deps, "/repo/a")
	if p1.ID != p2.ID {
		t.Errorf("expected the same project id, got %d and %d", p1.ID, p2.ID)
	}
}

func TestEnsureProject_RejectsEmptyHumanKey(t *testing.T) {
	deps := newTestDeps(t)
	tool := &EnsureProject{Deps: deps}
	res, err := tool.Execute(context.Background(), mustJSON(t, ensureProjectParams{HumanKey: ""}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected an error result for an empty human_key")
	}
}

func TestRegisterAgentAndWhois(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/b")
	registerAgent(t, deps, project, "alice")

	tool := &Whois{Deps: deps}
	res, err := tool.Execute(context.Background(), mustJSON(t, whoisParams{Project: project.Slug, Agent: "alice"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("whois failed: %+v", res.Content)
	}
}

func TestWhois_UnknownAgentIsDomainError(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/c")

	tool := &Whois{Deps: deps}
	res, err := tool.Execute(context.Background(), mustJSON(t, whoisParams{Project: project.Slug, Agent: "nobody"}))
	if err != nil {
		t.Fatalf("expected a domain error surfaced as isError, got an infrastructure error: %v", err)
	}
	if !res.IsError {
		t.Error("expected whois on an unknown agent to report isError")
	}
}

func TestSendMessageAndFetchInbox(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/d")
	alice := registerAgent(t, deps, project, "alice")
	bob := registerAgent(t, deps, project, "bob")

	send := &SendMessage{Deps: deps}
	res, err := send.Execute(context.Background(), mustJSON(t, sendMessageParams{
		Project: project.Slug, Sender: alice.Name, To: []string{bob.Name},
		Subject: "hello", BodyMD: "world",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("send_message failed: %+v", res.Content)
	}

	fetch := &FetchInbox{Deps: deps}
	res, err = fetch.Execute(context.Background(), mustJSON(t, fetchInboxParams{Project: project.Slug, Agent: bob.Name}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("fetch_inbox failed: %+v", res.Content)
	}
}

func TestClaimPaths_ConflictReportedNotFailed(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/e")
	alice := registerAgent(t, deps, project, "alice")
	bob := registerAgent(t, deps, project, "bob")

	claim := &ClaimPaths{Deps: deps}
	res, err := claim.Execute(context.Background(), mustJSON(t, claimPathsParams{
		Project: project.Slug, Agent: alice.Name, Patterns: []string{"src/**"}, Exclusive: true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("first claim should succeed: %+v", res.Content)
	}

	res, err = claim.Execute(context.Background(), mustJSON(t, claimPathsParams{
		Project: project.Slug, Agent: bob.Name, Patterns: []string{"src/**"}, Exclusive: true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("conflicting claim should still be a successful call reporting conflicts: %+v", res.Content)
	}
}

func TestSearchMessages_FindsSentMessage(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/g")
	alice := registerAgent(t, deps, project, "alice")
	bob := registerAgent(t, deps, project, "bob")

	send := &SendMessage{Deps: deps}
	res, err := send.Execute(context.Background(), mustJSON(t, sendMessageParams{
		Project: project.Slug, Sender: alice.Name, To: []string{bob.Name},
		Subject: "quarterly rollout", BodyMD: "the migration finishes friday",
	}))
	if err != nil || res.IsError {
		t.Fatalf("send_message failed: err=%v res=%+v", err, res)
	}

	search := &SearchMessages{Deps: deps}
	res, err = search.Execute(context.Background(), mustJSON(t, searchMessagesParams{
		Project: project.Slug, Query: "rollout",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("search_messages failed: %+v", res.Content)
	}
}

func TestRequestContact_DeliversIntroMessage(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/h")
	alice := registerAgent(t, deps, project, "alice")
	bob := registerAgent(t, deps, project, "bob")
	if err := deps.Store.SetContactPolicy(context.Background(), bob.ID, "block_all"); err != nil {
		t.Fatal(err)
	}

	reqContact := &RequestContact{Deps: deps}
	res, err := reqContact.Execute(context.Background(), mustJSON(t, requestContactParams{
		Project: project.Slug, From: alice.Name, To: bob.Name, Reason: "need to coordinate on the release",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("request_contact failed: %+v", res.Content)
	}

	fetch := &FetchInbox{Deps: deps}
	res, err = fetch.Execute(context.Background(), mustJSON(t, fetchInboxParams{Project: project.Slug, Agent: bob.Name}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("fetch_inbox failed: %+v", res.Content)
	}
	inbox, err := deps.Store.Inbox(context.Background(), bob.ID, store.InboxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 {
		t.Fatalf("expected the ack-required intro message to reach bob despite block_all, got %d messages", len(inbox))
	}
	if !inbox[0].AckRequired {
		t.Error("expected the intro message to be ack_required")
	}
}

func TestHealthCheck_ReportsDBOK(t *testing.T) {
	deps := newTestDeps(t)
	tool := &HealthCheck{Deps: deps}
	res, err := tool.Execute(context.Background(), mustJSON(t, struct{}{}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("health_check failed: %+v", res.Content)
	}
}

func TestSummarizeThread_CachesAcrossCalls(t *testing.T) {
	deps := newTestDeps(t)
	project := ensureProject(t, deps, "/repo/f")
	alice := registerAgent(t, deps, project, "alice")
	bob := registerAgent(t, deps, project, "bob")

	send := &SendMessage{Deps: deps}
	res, err := send.Execute(context.Background(), mustJSON(t, sendMessageParams{
		Project: project.Slug, Sender: alice.Name, To: []string{bob.Name},
		Subject: "design review", BodyMD: "TODO: finish the writeup", ThreadID: "thread-1",
	}))
	if err != nil || res.IsError {
		t.Fatalf("send_message failed: err=%v res=%+v", err, res)
	}

	summarize := &SummarizeThread{Deps: deps}
	first, err := summarize.Execute(context.Background(), mustJSON(t, summarizeThreadParams{
		Project: project.Slug, ThreadID: "thread-1",
	}))
	if err != nil || first.IsError {
		t.Fatalf("summarize_thread failed: err=%v res=%+v", err, first)
	}

	if _, ok := deps.digests.Get(digestCacheKey(project.ID, "thread-1")); !ok {
		t.Error("expected the digest to be cached after the first call")
	}

	second, err := summarize.Execute(context.Background(), mustJSON(t, summarizeThreadParams{
		Project: project.Slug, ThreadID: "thread-1",
	}))
	if err != nil || second.IsError {
		t.Fatalf("second summarize_thread call failed: err=%v res=%+v", err, second)
	}
}
