package ui

import (
	"fmt"
	"io"
	"strings"

	md "github.com/MichaelMure/go-term-markdown"
	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/kilnrun/kiln/internal/config"
)

// TraditionalUI handles kiln's terminal UI using pterm and readline.
type TraditionalUI struct {
	config      config.UIConfig
	readline    *readline.Instance
	exitHandler func()
}

func NewTraditionalUI(cfg config.UIConfig, exitHandler func()) (*TraditionalUI, error) {
	if !cfg.ColorEnabled {
		pterm.DisableColor()
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %v", err)
	}
	historyFile := configDir + "/history"

	rlConfig := &readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		HistoryLimit:    1000,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    GetPathCompleter(),
	}

	instance, err := readline.NewEx(rlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %v", err)
	}

	return &TraditionalUI{config: cfg, readline: instance, exitHandler: exitHandler}, nil
}

func (u *TraditionalUI) ShowHeader() {
	header := pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(pterm.BgBlue)).WithMargin(10)
	header.Println("kiln - autonomous task execution")

	configDir, _ := getConfigDir()
	if configDir != "" {
		pterm.Info.Println("LLM interactions are logged under the data directory: llm_interactions.jsonl")
	}
}

func (u *TraditionalUI) StartSpinner(text string) *pterm.SpinnerPrinter {
	if !u.config.ShowSpinner {
		fmt.Println(text + "...")
		return nil
	}
	spinner, _ := pterm.DefaultSpinner.Start(text)
	return spinner
}

func (u *TraditionalUI) StopSpinner(spinner *pterm.SpinnerPrinter, text string) {
	if spinner == nil {
		fmt.Println(text)
		return
	}
	spinner.Success(text)
}

func (u *TraditionalUI) StopSpinnerFail(spinner *pterm.SpinnerPrinter, text string) {
	if spinner == nil {
		pterm.Error.Println(text)
		return
	}
	spinner.Fail(text)
}

func parseMarkdown(text string) string {
	return string(md.Render(text, 80, 0))
}

// PrintStep renders one tool call step with its arguments and outcome.
// kind is currently always "tool" - the caller has already paired each
// tool step with its trailing observation before calling in.
func (u *TraditionalUI) PrintStep(kind, toolName string, args map[string]any, result string, err error) {
	panel := pterm.DefaultBox.WithTitle("Tool: " + toolName)

	var content strings.Builder
	content.WriteString("Arguments:\n")
	for k, v := range args {
		content.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
	}
	if err != nil {
		content.WriteString("\nError: " + err.Error() + "\n")
	} else if result != "" {
		content.WriteString("\nResult:\n" + result + "\n")
	}
	panel.Println(content.String())
}

// PrintFinalAnswer prints a run's final answer with markdown formatting.
func (u *TraditionalUI) PrintFinalAnswer(answer string) {
	fmt.Print("$ ")
	fmt.Println(parseMarkdown(answer))
}

func (u *TraditionalUI) PrintError(message string) {
	pterm.Error.Println(message)
}

func (u *TraditionalUI) PrintSuccess(message string) {
	pterm.Success.Println(message)
}

func (u *TraditionalUI) PrintInfo(message string) {
	pterm.Info.Println(message)
}

func (u *TraditionalUI) AskInput(prompt string) string {
	u.readline.SetPrompt(prompt)
	defer u.readline.SetPrompt("> ")

	text, err := u.readline.Readline()
	if err != nil {
		if err == io.EOF && u.exitHandler != nil {
			fmt.Println("exit")
			u.exitHandler()
			return ""
		}
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			return ""
		}
		pterm.Error.Println("Error reading input:", err)
		return ""
	}

	if text != "" {
		u.readline.SaveHistory(text)
	}
	return text
}

func (u *TraditionalUI) ClearScreen() {
	pterm.DefaultArea.Clear()
}

func (u *TraditionalUI) AskToolCallConfirmation(explanation string) (bool, string) {
	pterm.DefaultBox.WithTitle("Confirm tool call").Println(explanation)

	confirmation, _ := pterm.DefaultInteractiveConfirm.
		WithRejectText("No, and tell what to do instead").
		WithDefaultText(explanation).
		Show()

	if confirmation {
		return true, ""
	}
	return false, u.AskInput("What should I do instead? ")
}
