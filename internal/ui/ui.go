// Package ui implements kiln's terminal-facing surface: progress display
// for a running task, approval prompts, and the interactive answer
// prompt used when the Planner asks the human a question. Grounded on
// the teacher's internal/ui package, generalized from an interactive
// chat REPL to a task-execution observer.
package ui

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/kilnrun/kiln/internal/config"
)

// UserInterface is kiln's terminal UI surface.
type UserInterface interface {
	ShowHeader()
	StartSpinner(text string) *pterm.SpinnerPrinter
	StopSpinner(spinner *pterm.SpinnerPrinter, text string)
	StopSpinnerFail(spinner *pterm.SpinnerPrinter, text string)
	PrintStep(kind, toolName string, args map[string]any, result string, err error)
	PrintFinalAnswer(answer string)
	PrintError(message string)
	PrintSuccess(message string)
	PrintInfo(message string)
	AskInput(prompt string) string
	ClearScreen()
	AskToolCallConfirmation(explanation string) (bool, string)
}

// NewUI creates kiln's terminal UI. There is only one implementation -
// the teacher's cfg.UseBubbleTea branch into a full-screen TUI was cut:
// a full-screen textarea/viewport interface fits an interactive chat
// REPL, not a task runner whose output is a step-by-step append-only
// log, so it had no natural home in this domain (see DESIGN.md).
func NewUI(cfg config.UIConfig, exitHandler func()) (UserInterface, error) {
	return NewTraditionalUI(cfg, exitHandler)
}

// getConfigDir gets the config directory path and ensures it exists.
func getConfigDir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		userConfigDir = "/tmp"
	}
	configDir := userConfigDir + "/kiln"
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %v", err)
	}
	return configDir, nil
}
