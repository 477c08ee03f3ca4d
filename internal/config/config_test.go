package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.Mode != "stdio" {
		t.Errorf("Transport.Mode = %q, want stdio", cfg.Transport.Mode)
	}
	if cfg.Ack.EscalationMode != "log" {
		t.Errorf("Ack.EscalationMode = %q, want log", cfg.Ack.EscalationMode)
	}
	if cfg.Search.DigestCacheTTLSeconds != 120 {
		t.Errorf("Search.DigestCacheTTLSeconds = %d, want 120", cfg.Search.DigestCacheTTLSeconds)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmail.toml")
	body := `
[storage]
root = "/tmp/custom-root"

[ack]
enabled = true
escalation_mode = "claim"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Root != "/tmp/custom-root" {
		t.Errorf("Storage.Root = %q, want /tmp/custom-root", cfg.Storage.Root)
	}
	if !cfg.Ack.Enabled || cfg.Ack.EscalationMode != "claim" {
		t.Errorf("Ack = %+v, want enabled claim mode", cfg.Ack)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("STORAGE_ROOT", "/tmp/env-root")
	t.Setenv("ACK_ESCALATION_MODE", "claim")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Root != "/tmp/env-root" {
		t.Errorf("Storage.Root = %q, want env override", cfg.Storage.Root)
	}
	if cfg.Ack.EscalationMode != "claim" {
		t.Errorf("Ack.EscalationMode = %q, want claim", cfg.Ack.EscalationMode)
	}
}

func TestValidate_RejectsBadTransportMode(t *testing.T) {
	c := &Config{
		Transport: TransportConfig{Mode: "carrier-pigeon"},
		Ack:       AckConfig{EscalationMode: "log"},
		Storage:   StorageConfig{Root: "./data"},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected Validate to reject an unknown transport mode")
	}
}

func TestValidate_RejectsBadEscalationMode(t *testing.T) {
	c := &Config{
		Transport: TransportConfig{Mode: "stdio"},
		Ack:       AckConfig{EscalationMode: "yell"},
		Storage:   StorageConfig{Root: "./data"},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected Validate to reject an unknown escalation mode")
	}
}

func TestValidate_RejectsEmptyStorageRoot(t *testing.T) {
	c := &Config{
		Transport: TransportConfig{Mode: "stdio"},
		Ack:       AckConfig{EscalationMode: "log"},
		Storage:   StorageConfig{Root: ""},
	}
	if err := c.Validate(); err == nil {
		t.Error("expected Validate to reject an empty storage root")
	}
}
