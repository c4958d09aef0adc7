// Command kiln runs the autonomous task-execution engine: given a task
// description, it plans and carries out tool calls until it produces a
// final answer, asks the human a question, or exhausts its step budget.
//
// Subcommands are dispatched with the standard library's flag.FlagSet -
// no cobra or urfave/cli appears anywhere in the retrieved corpus, so
// this follows the corpus's own precedent rather than reaching outside
// it for a CLI framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kilnrun/kiln/internal/agentloop"
	"github.com/kilnrun/kiln/internal/approval"
	"github.com/kilnrun/kiln/internal/catalog"
	"github.com/kilnrun/kiln/internal/config"
	"github.com/kilnrun/kiln/internal/embedindex"
	"github.com/kilnrun/kiln/internal/embedprovider"
	"github.com/kilnrun/kiln/internal/llmprovider"
	"github.com/kilnrun/kiln/internal/planner"
	"github.com/kilnrun/kiln/internal/platform"
	"github.com/kilnrun/kiln/internal/registry"
	"github.com/kilnrun/kiln/internal/reliability"
	"github.com/kilnrun/kiln/internal/runstore"
	"github.com/kilnrun/kiln/internal/telemetry"
	"github.com/kilnrun/kiln/internal/toolcache"
	"github.com/kilnrun/kiln/internal/tools"
	"github.com/kilnrun/kiln/internal/tools/builtin"
	"github.com/kilnrun/kiln/internal/ui"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	rest, err := applyGlobalFlags(&cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(rest) < 1 {
		usage()
		os.Exit(1)
	}

	dataDir, err := config.GetDataDir(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving data directory: %v\n", err)
		os.Exit(1)
	}

	debug := os.Getenv("KILN_DEBUG") != ""
	logger, err := telemetry.NewLogger(filepath.Join(dataDir, "logs", "kiln.log"), debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app, err := newApp(cfg, dataDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing: %v\n", err)
		os.Exit(1)
	}

	switch rest[0] {
	case "run":
		app.cmdRun(rest[1:])
	case "resume":
		app.cmdResume(rest[1:])
	case "tools":
		app.cmdTools(rest[1:])
	case "tool-search":
		app.cmdToolSearch(rest[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: kiln [global flags] <run|resume|tools|tool-search> [args]")
	fmt.Println("  kiln run <task description...>")
	fmt.Println("  kiln resume <runId> [answer...]")
	fmt.Println("  kiln tools list")
	fmt.Println("  kiln tool-search <query...> [-topk N]")
	fmt.Println("global flags (override .kiln.yaml and environment):")
	fmt.Println("  -approval-mode <auto|sensitive|always>")
	fmt.Println("  -max-steps <n>")
	fmt.Println("  -topk-tools <n>")
	fmt.Println("  -data-dir <path>")
}

// applyGlobalFlags parses the leading run of global flags off args (before
// the subcommand name) and layers any that were explicitly set onto cfg,
// which was already loaded from .kiln.yaml and KILN_ environment variables.
// Per spec.md's "CLI flags override environment" requirement, this must run
// after config.LoadConfig and before anything derived from cfg (data dir,
// the agent loop's step budget, the planner's candidate width). It returns
// the remaining, unparsed arguments starting at the subcommand name.
func applyGlobalFlags(cfg *config.Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("kiln", flag.ContinueOnError)
	approvalMode := fs.String("approval-mode", "", "override the configured approval mode")
	maxSteps := fs.Int("max-steps", 0, "override the configured step budget")
	topK := fs.Int("topk-tools", 0, "override the configured candidate width")
	dataDir := fs.String("data-dir", "", "override the configured data directory")
	fs.Usage = func() {}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if *approvalMode != "" {
		cfg.Run.ApprovalMode = *approvalMode
	}
	if *maxSteps != 0 {
		cfg.Run.MaxSteps = *maxSteps
	}
	if *topK != 0 {
		cfg.Run.TopKTools = *topK
	}
	if *dataDir != "" {
		cfg.Run.DataDir = *dataDir
	}
	return fs.Args(), nil
}

// app holds every wired collaborator, built once per process invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *registry.Registry
	loop     *agentloop.Loop
	store    *runstore.Store
	ui       ui.UserInterface
}

func newApp(cfg config.Config, dataDir string, logger *zap.Logger) (*app, error) {
	cat := catalog.New(logger)
	dirs, err := platform.GetDirectories("kiln")
	if err != nil {
		return nil, fmt.Errorf("resolving platform directories: %w", err)
	}
	if err := cat.Scan(dirs.GetToolDescriptorsDir()); err != nil {
		logger.Warn("scanning tool descriptors", zap.Error(err))
	}
	logger.Debug("command tool cache directory", zap.String("path", dirs.GetCommandToolsCacheDir()))

	embedProvider := embedprovider.Auto(embedprovider.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		OllamaURL: cfg.Embedding.OllamaURL,
	})
	index := embedindex.New(filepath.Join(dataDir, "tools", "index.json"), embedProvider)
	if err := index.Load(); err != nil {
		logger.Warn("loading tool index", zap.Error(err))
	}

	cache := toolcache.New()

	reg := registry.New(cat, index, cache, builtinLoader(), logger)
	registerBuiltins(reg, embedProvider, cfg)

	ctx := context.Background()
	if err := reg.EnsureIndex(ctx); err != nil {
		logger.Warn("ensuring tool index", zap.Error(err))
	}

	rawProvider := llmprovider.Auto(llmprovider.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.Endpoint,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		OllamaURL: cfg.LLM.OllamaURL,
	})
	loggedProvider := llmprovider.NewLogging(rawProvider, dataDir)

	inferencer := planner.NewInferencer(loggedProvider)
	p := planner.New(reg, loggedProvider, inferencer, cfg.Run.TopKTools)
	wrapper := reliability.New()

	term, err := ui.NewUI(cfg.UI, func() { os.Exit(0) })
	if err != nil {
		return nil, fmt.Errorf("creating UI: %w", err)
	}
	policy := approval.New(approval.Mode(cfg.Run.ApprovalMode), cfg.Permissions.AutoApprove, ui.Prompter{UI: term})

	store := runstore.New(dataDir)
	loop := agentloop.New(reg, p, inferencer, wrapper, policy, store, logger, cfg.Run.MaxSteps)

	return &app{cfg: cfg, logger: logger, registry: reg, loop: loop, store: store, ui: term}, nil
}

func (a *app) cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Parse(args)
	task := fs.Arg(0)
	for _, extra := range fs.Args()[1:] {
		task += " " + extra
	}
	if task == "" {
		fmt.Fprintln(os.Stderr, "usage: kiln run <task description...>")
		os.Exit(1)
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	run, err := a.loop.Run(ctx, task)
	a.reportRun(run, err)
}

func (a *app) cmdResume(args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	fs.Parse(args)
	runID := fs.Arg(0)
	if runID == "" {
		fmt.Fprintln(os.Stderr, "usage: kiln resume <runId> [answer...]")
		os.Exit(1)
	}
	answer := strings.Join(fs.Args()[1:], " ")

	ctx, cancel := interruptibleContext()
	defer cancel()

	run, err := a.loop.Resume(ctx, runID, answer)
	a.reportRun(run, err)
}

// reportRun prints the run's trajectory and sets the process exit code per
// spec.md §6: 0 only for a completed run, non-zero for everything else - a
// paused run prints its runId on stdout so the caller can pass it (and, for
// an ask_human pause, the human's answer) to `kiln resume` later.
func (a *app) reportRun(run *runstore.Run, err error) {
	if run != nil {
		for i, step := range run.Steps {
			if step.Kind != runstore.StepTool {
				continue
			}
			var result string
			var stepErr error
			if i+1 < len(run.Steps) && run.Steps[i+1].Kind == runstore.StepObservation {
				obs := run.Steps[i+1]
				result = obs.Result
				if obs.Error != "" {
					stepErr = fmt.Errorf("%s", obs.Error)
				}
			}
			a.ui.PrintStep(step.Kind, step.ToolName, step.Args, result, stepErr)
		}
	}
	if err != nil {
		a.ui.PrintError(err.Error())
		os.Exit(1)
	}
	if run.Status == runstore.StatusDone {
		a.ui.PrintFinalAnswer(run.FinalAnswer)
		return
	}
	if run.Status == runstore.StatusPaused {
		if len(run.Steps) > 0 {
			if last := run.Steps[len(run.Steps)-1]; last.Kind == runstore.StepThought && last.ActionType == "ask_human" {
				a.ui.PrintInfo(fmt.Sprintf("Run %s is waiting on a human answer: %s", run.ID, last.Question))
				fmt.Println(run.ID)
				os.Exit(1)
			}
		}
		a.ui.PrintInfo(fmt.Sprintf("Run %s is paused: kiln resume %s", run.ID, run.ID))
		fmt.Println(run.ID)
		os.Exit(1)
	}
	a.ui.PrintInfo(fmt.Sprintf("Run %s ended with status %s", run.ID, run.Status))
	os.Exit(1)
}

func (a *app) cmdTools(args []string) {
	fs := flag.NewFlagSet("tools", flag.ExitOnError)
	fs.Parse(args)
	if fs.Arg(0) != "list" && fs.Arg(0) != "" {
		fmt.Fprintln(os.Stderr, "usage: kiln tools list")
		os.Exit(1)
	}
	for _, e := range a.registry.List() {
		fmt.Printf("%-20s %s\n", e.Name, e.Description)
	}
}

func (a *app) cmdToolSearch(args []string) {
	fs := flag.NewFlagSet("tool-search", flag.ExitOnError)
	topK := fs.Int("topk", a.cfg.Run.TopKTools, "number of candidates to return")
	fs.Parse(args)
	query := fs.Arg(0)
	for _, extra := range fs.Args()[1:] {
		query += " " + extra
	}
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: kiln tool-search <query...> [--topk N]")
		os.Exit(1)
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	entries, err := a.registry.Search(ctx, query, *topK)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Printf("%-20s %s\n", e.Name, e.Description)
	}
}

func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// registerBuiltins registers every builtin tool with the registry,
// keyed by the plugin name a tools.d descriptor would reference.
func registerBuiltins(reg *registry.Registry, embedProvider embedprovider.Provider, cfg config.Config) {
	summarizeProvider := llmprovider.Auto(llmprovider.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.Endpoint,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		OllamaURL: cfg.LLM.OllamaURL,
	})

	impls := map[string]*tools.Tool{
		"shell":          builtin.Shell(),
		"file_read":      builtin.FileRead(),
		"file_write":     builtin.FileWrite(),
		"grep":           builtin.Grep(),
		"calculator":     builtin.Calculator(),
		"web_search":     builtin.WebSearch(),
		"summarize_text": builtin.SummarizeText(summarizeProvider),
	}

	ctx := context.Background()
	for name, impl := range impls {
		entry := catalog.Entry{
			Name:        impl.Name,
			Description: impl.Description,
			Category:    impl.Category,
			Tags:        impl.Tags,
			Priority:    impl.Priority,
			Sensitive:   impl.Sensitive,
			Plugin:      name,
		}
		if err := reg.Register(ctx, entry, impl); err != nil {
			continue
		}
	}
}

// builtinLoader resolves a catalog entry's Plugin field back into a
// runnable implementation, for descriptor-only entries scanned from
// tools.d rather than registered directly at startup.
func builtinLoader() registry.Loader {
	builders := map[string]func() *tools.Tool{
		"shell":      builtin.Shell,
		"file_read":  builtin.FileRead,
		"file_write": builtin.FileWrite,
		"grep":       builtin.Grep,
		"calculator": builtin.Calculator,
		"web_search": builtin.WebSearch,
	}
	return func(ctx context.Context, entry catalog.Entry) (*tools.Tool, error) {
		build, ok := builders[entry.Plugin]
		if !ok {
			return nil, fmt.Errorf("no builtin plugin registered for %q (command-backed tools are not yet supported)", entry.Plugin)
		}
		return build(), nil
	}
}
