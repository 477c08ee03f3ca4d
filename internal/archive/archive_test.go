package archive

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteFileAtomic_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "profile.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "profile.json" {
		t.Fatalf("expected exactly one file named profile.json, got %v", entries)
	}
}

func TestFrontmatter_RoundTrip(t *testing.T) {
	type meta struct {
		Name string `json:"name"`
	}
	doc, err := RenderFrontmatter(meta{Name: "GreenCastle"}, "hello world")
	if err != nil {
		t.Fatal(err)
	}

	var decoded meta
	body, err := DecodeFrontmatter(doc, &decoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Name != "GreenCastle" {
		t.Errorf("got name %q", decoded.Name)
	}
	if body != "hello world\n" {
		t.Errorf("got body %q", body)
	}
}

func TestFrontmatter_RejectsMissingHeader(t *testing.T) {
	if _, _, err := ParseFrontmatter([]byte("just some text")); err == nil {
		t.Error("expected error for missing frontmatter header")
	}
}

func TestTree_Paths(t *testing.T) {
	tr := New("/store", "abs-backend")
	sent := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	if got, want := tr.InboxMessagePath("GreenCastle", sent, "msg_20260730_deadbeef"),
		"/store/projects/abs-backend/repo/agents/GreenCastle/inbox/2026/07/msg_20260730_deadbeef.md"; got != want {
		t.Errorf("InboxMessagePath = %q, want %q", got, want)
	}

	claim := tr.ClaimPath("app/**")
	if filepath.Dir(claim) != filepath.Join("/store", "projects", "abs-backend", "repo", "claims") {
		t.Errorf("ClaimPath dir = %q", filepath.Dir(claim))
	}
}

func TestWriteMessageBody_WritesAllCopies(t *testing.T) {
	dir := t.TempDir()
	tr := New(dir, "proj")
	sent := time.Now().UTC()

	fm := MessageFrontmatter{
		ExternalID: "msg_20260730_cafebabe",
		Subject:    "status",
		Sender:     "Alice",
		To:         []string{"Bob"},
		CreatedTs:  sent,
		Importance: "normal",
	}

	canonical, err := tr.WriteMessageBody(fm, "all green", []string{"Bob"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(canonical); err != nil {
		t.Errorf("canonical message missing: %v", err)
	}
	if _, err := os.Stat(tr.OutboxMessagePath("Alice", sent, fm.ExternalID)); err != nil {
		t.Errorf("outbox mirror missing: %v", err)
	}
	if _, err := os.Stat(tr.InboxMessagePath("Bob", sent, fm.ExternalID)); err != nil {
		t.Errorf("inbox mirror missing: %v", err)
	}
}

func TestWriteClaim(t *testing.T) {
	dir := t.TempDir()
	tr := New(dir, "proj")

	path, err := tr.WriteClaim(ReservationArtifact{
		Agent: "Alice", Pattern: "app/**", Exclusive: true,
		CreatedTs: time.Now().UTC(), ExpiresTs: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded ReservationArtifact
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Pattern != "app/**" {
		t.Errorf("got pattern %q", decoded.Pattern)
	}
	if bytes.HasPrefix(data, []byte(frontmatterOpen)) {
		t.Error("reservation artifacts must be plain JSON, not frontmatter-wrapped")
	}
}
