package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/kilnrun/kiln/internal/schema"
)

func TestValidate_NilSchemaAlwaysPasses(t *testing.T) {
	tool := &Tool{Name: "no_schema"}
	if err := tool.Validate(map[string]any{"anything": true}); err != nil {
		t.Errorf("expected a tool with no InputSchema to accept any input, got %v", err)
	}
}

func TestValidate_EnforcesDeclaredSchema(t *testing.T) {
	sc := schema.New()
	sc.Properties["path"] = schema.Property{Type: "string"}
	sc.Required = []string{"path"}
	tool := &Tool{Name: "file_read", InputSchema: sc}

	if err := tool.Validate(map[string]any{"path": "a.txt"}); err != nil {
		t.Errorf("expected valid input to pass, got %v", err)
	}
	if err := tool.Validate(map[string]any{}); err == nil {
		t.Error("expected missing required field to fail validation")
	}
}

func TestRun_RejectsInvalidInputWithoutExecuting(t *testing.T) {
	sc := schema.New()
	sc.Properties["path"] = schema.Property{Type: "string"}
	sc.Required = []string{"path"}

	called := false
	tool := &Tool{
		Name:        "file_read",
		InputSchema: sc,
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			called = true
			return "", nil
		},
	}

	if _, err := tool.Run(context.Background(), map[string]any{}); err == nil {
		t.Error("expected Run to reject input missing a required field")
	}
	if called {
		t.Error("expected Run to short-circuit before calling Execute on invalid input")
	}
}

func TestRun_ExecutesOnValidInput(t *testing.T) {
	sc := schema.New()
	sc.Properties["text"] = schema.Property{Type: "string"}
	sc.Required = []string{"text"}

	tool := &Tool{
		Name:        "echo",
		InputSchema: sc,
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			return input["text"].(string), nil
		},
	}

	out, err := tool.Run(context.Background(), map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "hi" {
		t.Errorf("expected Run to return the tool's Execute output, got %q", out)
	}
}

func TestRun_PropagatesExecuteError(t *testing.T) {
	wantErr := errors.New("boom")
	tool := &Tool{
		Name: "always_fails",
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			return "", wantErr
		},
	}

	_, err := tool.Run(context.Background(), map[string]any{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected Run to propagate Execute's error, got %v", err)
	}
}
