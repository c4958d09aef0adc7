// Package reliability wraps tool execution with retry and per-tool
// circuit breaking. The backoff shape (jittered exponential, checked
// against ctx.Done between attempts) is grounded on
// ashita-ai-akashi/internal/storage/retry.go's WithRetry, generalized
// from a Postgres-error-code retriable predicate to "any error a tool
// returns is retriable unless the breaker for that tool is open".
package reliability

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kilnrun/kiln/internal/tools"
)

// ErrCircuitOpen is returned when a tool's breaker has tripped and its
// cooldown hasn't elapsed yet.
var ErrCircuitOpen = errors.New("circuit open")

// circuitOpenError renders as spec.md's exact "circuit_open:<name>" tag -
// the string an observation's error field carries so a caller can match
// on it - while still unwrapping to ErrCircuitOpen for errors.Is checks.
type circuitOpenError struct {
	tool string
}

func (e *circuitOpenError) Error() string { return fmt.Sprintf("circuit_open:%s", e.tool) }
func (e *circuitOpenError) Unwrap() error { return ErrCircuitOpen }

const (
	defaultMaxAttempts      = 3
	defaultBaseDelay        = 400 * time.Millisecond
	defaultFailureThreshold = 3
	defaultCooldown         = 30 * time.Second
)

type breakerState struct {
	mu        sync.Mutex
	failures  int
	openedAt  time.Time
	open      bool
	threshold int
	cooldown  time.Duration
}

func (b *breakerState) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if time.Since(b.openedAt) >= b.cooldown {
		// half-open: let one call through to probe recovery.
		b.open = false
		b.failures = 0
		return true
	}
	return false
}

func (b *breakerState) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

func (b *breakerState) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
		b.openedAt = time.Now()
	}
}

// Wrapper executes tool calls with retry-with-backoff and a per-tool
// circuit breaker. State is process-local and in-memory, matching
// spec.md's scope for a single-process task-execution engine.
type Wrapper struct {
	breakers sync.Map // name -> *breakerState
}

func New() *Wrapper {
	return &Wrapper{}
}

func (w *Wrapper) breakerFor(t *tools.Tool) *breakerState {
	v, _ := w.breakers.LoadOrStore(t.Name, &breakerState{
		threshold: firstNonZero(t.Breaker.FailureThreshold, defaultFailureThreshold),
		cooldown:  firstNonZeroDuration(t.Breaker.CooldownSeconds, defaultCooldown),
	})
	return v.(*breakerState)
}

// Execute validates input, then runs t.Execute with retry and
// circuit-breaking applied.
// It never wraps a HumanDenied or validation error in retries - those
// are not transient - only failures from the tool body itself.
func (w *Wrapper) Execute(ctx context.Context, t *tools.Tool, input map[string]any) (string, error) {
	if err := t.Validate(input); err != nil {
		return "", err
	}

	breaker := w.breakerFor(t)
	if !breaker.allow() {
		return "", &circuitOpenError{tool: t.Name}
	}

	maxAttempts := firstNonZero(t.Retry.MaxAttempts, defaultMaxAttempts)
	baseDelay := defaultBaseDelay
	if t.Retry.BaseDelayMS > 0 {
		baseDelay = time.Duration(t.Retry.BaseDelayMS) * time.Millisecond
	}

	var result string
	var err error
	delay := baseDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err = t.Execute(ctx, input)
		if err == nil {
			breaker.recordSuccess()
			return result, nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}

	breaker.recordFailure()
	return "", fmt.Errorf("%s: %w", t.Name, err)
}

func firstNonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func firstNonZeroDuration(seconds int, def time.Duration) time.Duration {
	if seconds == 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
