package builtin

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/kilnrun/kiln/internal/schema"
	"github.com/kilnrun/kiln/internal/tools"
)

// Shell runs an arbitrary shell command. It is marked sensitive so the
// approval policy prompts a human before it runs under "sensitive" mode.
func Shell() *tools.Tool {
	sc := schema.New()
	sc.Properties["command"] = schema.Property{Type: "string", Description: "The shell command to execute"}
	sc.Properties["why"] = schema.Property{Type: "string", Description: "A short reason for running this command"}
	sc.Required = []string{"command"}

	return &tools.Tool{
		Name:        "shell",
		Description: "Execute a shell command and capture its stdout, stderr and exit code",
		Category:    "system",
		Tags:        []string{"shell", "exec", "command"},
		Sensitive:   true,
		InputSchema: sc,
		Explain: func(input map[string]any) tools.ExplainResult {
			command, _ := input["command"].(string)
			why, _ := input["why"].(string)
			return tools.ExplainResult{Title: fmt.Sprintf("Shell(%s)", command), Context: why}
		},
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			command, _ := input["command"].(string)
			cmd := exec.CommandContext(ctx, "sh", "-c", command)

			stdout, err := cmd.Output()
			if err != nil {
				var exitCode int
				var stderr string
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
					stderr = string(exitErr.Stderr)
				} else {
					exitCode = 1
					stderr = err.Error()
				}
				result := fmt.Sprintf("Command: %s\nExit Code: %d\n", command, exitCode)
				if len(stdout) > 0 {
					result += "\nStandard Output:\n" + string(stdout) + "\n"
				}
				if stderr != "" {
					result += "\nStandard Error:\n" + stderr + "\n"
				}
				return result, nil
			}

			result := fmt.Sprintf("Command: %s\nExit Code: 0\n", command)
			if len(stdout) > 0 {
				result += "\nOutput:\n" + string(stdout) + "\n"
			}
			return result, nil
		},
	}
}
