package guardhook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInstall_WritesExecutableHook(t *testing.T) {
	root := t.TempDir()

	res, err := Install(root, filepath.Join(root, "claims"), "proj")
	if err != nil {
		t.Fatal(err)
	}
	if res.BackedUpPath != "" {
		t.Errorf("expected no backup on first install, got %q", res.BackedUpPath)
	}

	info, err := os.Stat(res.HookPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("expected hook to be executable")
	}

	data, err := os.ReadFile(res.HookPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), marker) {
		t.Error("expected generated hook to carry the agentmail marker")
	}
	if !strings.Contains(string(data), "AGENT_MAIL_BYPASS") {
		t.Error("expected bypass variable to be referenced")
	}
}

func TestInstall_BacksUpForeignHook(t *testing.T) {
	root := t.TempDir()
	hooksDir := filepath.Join(root, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	foreign := "#!/bin/sh\necho not ours\n"
	if err := os.WriteFile(filepath.Join(hooksDir, "pre-commit"), []byte(foreign), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Install(root, filepath.Join(root, "claims"), "proj")
	if err != nil {
		t.Fatal(err)
	}
	if res.BackedUpPath == "" {
		t.Fatal("expected a backup path for a pre-existing foreign hook")
	}
	backup, err := os.ReadFile(res.BackedUpPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(backup) != foreign {
		t.Error("expected backup to preserve the original foreign hook content")
	}
}

func TestInstall_IsIdempotentOnOwnHook(t *testing.T) {
	root := t.TempDir()
	if _, err := Install(root, filepath.Join(root, "claims"), "proj"); err != nil {
		t.Fatal(err)
	}
	res, err := Install(root, filepath.Join(root, "claims"), "proj")
	if err != nil {
		t.Fatal(err)
	}
	if res.BackedUpPath != "" {
		t.Errorf("expected reinstalling our own hook to skip backup, got %q", res.BackedUpPath)
	}
}

func TestUninstall_RefusesForeignHook(t *testing.T) {
	root := t.TempDir()
	hooksDir := filepath.Join(root, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hooksDir, "pre-commit"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Uninstall(root); err == nil {
		t.Fatal("expected Uninstall to refuse removing a hook it did not install")
	}
}

func TestUninstall_RemovesOwnHookAndRestoresBackup(t *testing.T) {
	root := t.TempDir()
	hooksDir := filepath.Join(root, ".git", "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	foreign := "#!/bin/sh\necho not ours\n"
	if err := os.WriteFile(filepath.Join(hooksDir, "pre-commit"), []byte(foreign), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := Install(root, filepath.Join(root, "claims"), "proj"); err != nil {
		t.Fatal(err)
	}
	if err := Uninstall(root); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(hooksDir, "pre-commit"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != foreign {
		t.Errorf("expected uninstall to restore the foreign hook, got %q", string(data))
	}
}
