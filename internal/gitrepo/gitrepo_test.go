package gitrepo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_InitializesLazily(t *testing.T) {
	root := t.TempDir()
	if _, err := Open(root); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		t.Errorf("expected .git directory, got: %v", err)
	}

	// Reopening an existing repo must not fail or reinitialize.
	if _, err := Open(root); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
}

func TestCommit_IncludesTrailers(t *testing.T) {
	root := t.TempDir()
	c, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	msgPath := filepath.Join(root, "messages", "2026", "07", "msg_1.md")
	if err := os.MkdirAll(filepath.Dir(msgPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(msgPath, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := c.Commit([]string{msgPath}, "send message msg_1", Trailers{
		Agent: "GreenCastle", MessageID: "msg_1", Kind: KindSend,
	})
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" {
		t.Error("expected non-empty commit hash")
	}
}

func TestPreImage_RestoresOnFailure(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "claims", "abc.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"v":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}

	pre, err := c.CapturePreImage([]string{path})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(`{"v":2}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := pre.Restore(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != `{"v":1}` {
		t.Errorf("expected pre-image restored, got %q", data)
	}
}

func TestRenderMessage_IncludesAllTrailers(t *testing.T) {
	msg := renderMessage("reserve app/**", Trailers{Agent: "Alice", Thread: "t1", MessageID: "msg_1", Kind: KindReserve})
	for _, want := range []string{"Agent: Alice", "Thread: t1", "Message-Id: msg_1", "Kind: reserve"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
}
