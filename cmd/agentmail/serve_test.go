package main

import (
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/agentmail/internal/config"
	"github.com/Dicklesworthstone/agentmail/internal/store"
)

func TestBuildRegistry_RegistersEveryToolAndResource(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{
		Storage: config.StorageConfig{Root: t.TempDir()},
		Search:  config.SearchConfig{DigestCacheTTLSeconds: 60, DigestCacheMaxEntries: 100},
		Ack:     config.AckConfig{EscalationMode: "log"},
	}

	registry := buildRegistry(s, cfg, testLogger())

	const wantTools = 23
	if got := len(registry.List()); got != wantTools {
		t.Errorf("registered %d tools, want %d", got, wantTools)
	}

	const wantResources = 10
	if got := len(registry.ListResources()); got != wantResources {
		t.Errorf("registered %d resources, want %d", got, wantResources)
	}
}
