package planner

import (
	"strings"
	"testing"
)

func TestSanitizeExpression(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"2 + 2", "2 + 2"},
		{"what is 2+2?", "2+2"},
		{"(2 + 3) * 4", "(2 + 3) * 4"},
		{"3.5 + 1", "3.5 + 1"},
		{"end of sentence.", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeExpression(tt.text); got != tt.want {
			t.Errorf("sanitizeExpression(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestLooksArithmetic(t *testing.T) {
	tests := []struct {
		sanitized string
		want      bool
	}{
		{"2 + 2", true},
		{"(2 + 3) * 4", true},
		{"7", false},
		{"", false},
		{"()", false},
	}
	for _, tt := range tests {
		if got := looksArithmetic(tt.sanitized); got != tt.want {
			t.Errorf("looksArithmetic(%q) = %v, want %v", tt.sanitized, got, tt.want)
		}
	}
}

func TestSplitComparison(t *testing.T) {
	left, right, ok := splitComparison("1+2 vs 2*2")
	if !ok || left != "1+2" || right != "2*2" {
		t.Errorf("splitComparison = %q, %q, %v", left, right, ok)
	}
	left, right, ok = splitComparison("1+2 versus 2*2")
	if !ok || left != "1+2" || right != "2*2" {
		t.Errorf("splitComparison versus = %q, %q, %v", left, right, ok)
	}
	if _, _, ok := splitComparison("no separator here"); ok {
		t.Error("splitComparison should not match text without vs/versus")
	}
}

func TestTryArithmetic_FirstCallProposesCalculator(t *testing.T) {
	action, ok := tryArithmetic("what is 2 + 2", nil)
	if !ok {
		t.Fatal("expected tryArithmetic to match")
	}
	if action.Kind != KindUseTool || action.ToolName != "calculator" {
		t.Fatalf("expected a calculator tool call, got %+v", action)
	}
	if action.Args["expression"] != "2 + 2" {
		t.Errorf("expression = %v, want %q", action.Args["expression"], "2 + 2")
	}
}

func TestTryArithmetic_SecondCallResolvesFromHistory(t *testing.T) {
	history := []Observation{
		{ToolName: "calculator", Args: map[string]any{"expression": "2 + 2"}, Result: "4"},
	}
	action, ok := tryArithmetic("what is 2 + 2", history)
	if !ok {
		t.Fatal("expected tryArithmetic to match")
	}
	if action.Kind != KindFinalAnswer || action.Answer != "4" {
		t.Fatalf("expected FinalAnswer(4), got %+v", action)
	}
}

func TestTryArithmetic_NoOperatorDoesNotMatch(t *testing.T) {
	if _, ok := tryArithmetic("7", nil); ok {
		t.Error("a lone number should not be treated as arithmetic")
	}
	if _, ok := tryArithmetic("", nil); ok {
		t.Error("empty text should not be treated as arithmetic")
	}
}

func TestTryComparison_StepsThroughBothSidesBeforeFinal(t *testing.T) {
	action, ok := tryComparison("1+2 vs 2*2", nil)
	if !ok || action.Kind != KindUseTool || action.Args["expression"] != "1+2" {
		t.Fatalf("expected first call to evaluate left side, got %+v, ok=%v", action, ok)
	}

	history := []Observation{
		{ToolName: "calculator", Args: map[string]any{"expression": "1+2"}, Result: "3"},
	}
	action, ok = tryComparison("1+2 vs 2*2", history)
	if !ok || action.Kind != KindUseTool || action.Args["expression"] != "2*2" {
		t.Fatalf("expected second call to evaluate right side, got %+v, ok=%v", action, ok)
	}

	history = append(history, Observation{ToolName: "calculator", Args: map[string]any{"expression": "2*2"}, Result: "4"})
	action, ok = tryComparison("1+2 vs 2*2", history)
	if !ok || action.Kind != KindFinalAnswer {
		t.Fatalf("expected a final verdict once both sides are known, got %+v, ok=%v", action, ok)
	}
	for _, want := range []string{"3", "4", "less than"} {
		if !strings.Contains(action.Answer, want) {
			t.Errorf("final answer %q missing %q", action.Answer, want)
		}
	}
}

func TestTryComparison_NoSeparatorDoesNotMatch(t *testing.T) {
	if _, ok := tryComparison("no numbers here", nil); ok {
		t.Error("text without vs/versus should not match")
	}
}
