package llmprovider

import (
	"context"
	"strings"
	"testing"
)

func TestNoop_AlwaysAsksHuman(t *testing.T) {
	n := NewNoop()
	response, err := n.Complete(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(response, `"kind":"ask_human"`) {
		t.Errorf("expected an ask_human action, got %q", response)
	}
	if n.Name() != "noop" {
		t.Errorf("expected Name() == noop, got %s", n.Name())
	}
}
