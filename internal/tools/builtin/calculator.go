package builtin

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// Calculator evaluates a pure arithmetic expression. It is the concrete
// tool the Planner's single-math heuristic fallback and Argument
// Inferencer's deterministic shortcut both target.
//
// No arithmetic-expression library appears anywhere in the retrieved
// corpus, so evaluation is done with the standard library's own
// expression grammar (go/parser + go/ast), restricted to literals and
// +-*/ % operators - this is the one place kiln falls back to the
// standard library for a domain concern, and it is a narrow, closed one.
func Calculator() *tools.Tool {
	sc := schema.New()
	sc.Properties["expression"] = schema.Property{Type: "string", Description: "An arithmetic expression, e.g. \"(2+3)*4\""}
	sc.Required = []string{"expression"}

	return &tools.Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression and return the numeric result",
		Category:    "math",
		Tags:        []string{"math", "arithmetic", "calculator"},
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			expr, _ := input["expression"].(string)
			return tools.ExplainResult{Title: fmt.Sprintf("Calculator(%s)", expr), Context: "Will evaluate " + expr}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			expr, _ := input["expression"].(string)
			result, err := Evaluate(expr)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%g", result), nil
		},
	}
}

// Evaluate parses and evaluates a pure arithmetic expression over float64
// literals. It backs the calculator tool's Execute; the planner's math
// heuristic and the argument inferencer's deterministic shortcut reach it
// only through that tool, not by calling it directly.
func Evaluate(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("parsing expression: %w", err)
	}
	return evalNode(node)
}

func evalNode(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal: %s", n.Value)
		}
		var v float64
		if _, err := fmt.Sscanf(n.Value, "%g", &v); err != nil {
			return 0, fmt.Errorf("parsing literal %q: %w", n.Value, err)
		}
		return v, nil
	case *ast.ParenExpr:
		return evalNode(n.X)
	case *ast.UnaryExpr:
		x, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		default:
			return 0, fmt.Errorf("unsupported unary operator: %s", n.Op)
		}
	case *ast.BinaryExpr:
		x, err := evalNode(n.X)
		if err != nil {
			return 0, err
		}
		y, err := evalNode(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return float64(int64(x) % int64(y)), nil
		default:
			return 0, fmt.Errorf("unsupported operator: %s", n.Op)
		}
	default:
		return 0, fmt.Errorf("unsupported expression syntax")
	}
}
