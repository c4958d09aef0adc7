package llmprovider

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// logEntry is one line of the interaction log.
type logEntry struct {
	Timestamp string `json:"timestamp"`
	Provider  string `json:"provider"`
	Prompt    string `json:"prompt"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Logging wraps a Provider and appends every prompt/response pair to a
// JSONL file, grounded on the teacher's internal/llm/logger.go
// (FileLogger.LogInteraction) - generalized from OpenAI chat-completion
// request/response structs to the plain prompt/response strings this
// package's Provider interface exchanges.
type Logging struct {
	inner   Provider
	logPath string
}

func NewLogging(inner Provider, dataDir string) *Logging {
	return &Logging{inner: inner, logPath: filepath.Join(dataDir, "llm_interactions.jsonl")}
}

func (l *Logging) Name() string { return l.inner.Name() }

func (l *Logging) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := l.inner.Complete(ctx, prompt)

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Provider:  l.inner.Name(),
		Prompt:    prompt,
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Response = response
	}
	l.append(entry)

	return response, err
}

func (l *Logging) append(entry logEntry) {
	line, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		return
	}
	f, openErr := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if openErr != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(line, '\n'))
}
