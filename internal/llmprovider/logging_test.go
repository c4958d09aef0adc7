package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubInner struct {
	response string
	err      error
}

func (s *stubInner) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func (s *stubInner) Name() string { return "stub" }

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	return lines
}

func TestLogging_AppendsSuccessfulInteraction(t *testing.T) {
	dir := t.TempDir()
	l := NewLogging(&stubInner{response: "the answer"}, dir)

	out, err := l.Complete(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "the answer" {
		t.Errorf("expected the inner provider's response to pass through, got %q", out)
	}

	lines := readLines(t, filepath.Join(dir, "llm_interactions.jsonl"))
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 logged line, got %d", len(lines))
	}
	var entry logEntry
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if entry.Prompt != "what is the answer?" || entry.Response != "the answer" || entry.Error != "" {
		t.Errorf("unexpected logged entry: %+v", entry)
	}
}

func TestLogging_LogsErrorsToo(t *testing.T) {
	dir := t.TempDir()
	l := NewLogging(&stubInner{err: errors.New("provider down")}, dir)

	_, err := l.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected the inner provider's error to propagate")
	}

	lines := readLines(t, filepath.Join(dir, "llm_interactions.jsonl"))
	var entry logEntry
	json.Unmarshal([]byte(lines[0]), &entry)
	if entry.Error == "" {
		t.Error("expected the error to be recorded in the log entry")
	}
}

func TestLogging_AppendsAcrossMultipleCalls(t *testing.T) {
	dir := t.TempDir()
	l := NewLogging(&stubInner{response: "ok"}, dir)

	l.Complete(context.Background(), "first")
	l.Complete(context.Background(), "second")

	lines := readLines(t, filepath.Join(dir, "llm_interactions.jsonl"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 accumulated log lines, got %d", len(lines))
	}
}

func TestLogging_NamePassesThroughToInner(t *testing.T) {
	l := NewLogging(&stubInner{}, t.TempDir())
	if l.Name() != "stub" {
		t.Errorf("expected Name() to delegate to the inner provider, got %s", l.Name())
	}
}
