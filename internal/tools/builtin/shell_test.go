package builtin

import (
	"context"
	"strings"
	"testing"
)

func TestShell_IsMarkedSensitive(t *testing.T) {
	tool := Shell()
	if !tool.Sensitive {
		t.Error("expected the shell tool to be marked Sensitive")
	}
}

func TestShell_CapturesStdoutOnSuccess(t *testing.T) {
	tool := Shell()
	out, err := tool.Run(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "Exit Code: 0") || !strings.Contains(out, "hello") {
		t.Errorf("expected successful output to report exit code 0 and stdout, got %q", out)
	}
}

func TestShell_CapturesNonZeroExitWithoutReturningAnError(t *testing.T) {
	tool := Shell()
	out, err := tool.Run(context.Background(), map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatalf("expected a nonzero exit to be reported in the result, not as a Go error: %v", err)
	}
	if !strings.Contains(out, "Exit Code: 3") {
		t.Errorf("expected the exit code to be reported, got %q", out)
	}
}

func TestShell_RejectsMissingCommand(t *testing.T) {
	tool := Shell()
	if _, err := tool.Run(context.Background(), map[string]any{}); err == nil {
		t.Error("expected a missing command to fail schema validation")
	}
}
