package ids

import (
	"testing"

	"github.com/Dicklesworthstone/agentmail/internal/apperr"
)

func TestUniqueAgentName_UsesHintWhenFree(t *testing.T) {
	name, err := UniqueAgentName("GreenCastle", func(string) (bool, error) { return false, nil })
	if err != nil {
		t.Fatal(err)
	}
	if name != "GreenCastle" {
		t.Errorf("got %q, want GreenCastle", name)
	}
}

func TestUniqueAgentName_FallsBackWhenHintTaken(t *testing.T) {
	name, err := UniqueAgentName("GreenCastle", func(n string) (bool, error) { return n == "GreenCastle", nil })
	if err != nil {
		t.Fatal(err)
	}
	if name == "GreenCastle" || !ValidAgentName(name) {
		t.Errorf("expected a generated alternative, got %q", name)
	}
}

func TestUniqueAgentName_Exhaustion(t *testing.T) {
	_, err := UniqueAgentName("", func(string) (bool, error) { return true, nil })
	if err == nil {
		t.Fatal("expected NAME_EXHAUSTION error")
	}
	var appErr *apperr.Error
	if ae, ok := err.(*apperr.Error); ok {
		appErr = ae
	}
	if appErr == nil || appErr.Kind != apperr.NameExhaustion {
		t.Fatalf("expected NAME_EXHAUSTION kind, got %v", err)
	}
}
