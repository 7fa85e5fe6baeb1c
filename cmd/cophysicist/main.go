package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"cophysicist/internal/agent"
	"cophysicist/internal/anthropic"
	"cophysicist/internal/config"
	"cophysicist/internal/credentials"
	"cophysicist/internal/journal"
	"cophysicist/internal/llm"
	mockclient "cophysicist/internal/llm/mockclient"
	"cophysicist/internal/logging"
	"cophysicist/internal/mcpserver"
	"cophysicist/internal/openai"
	"cophysicist/internal/openrouter"
	"cophysicist/internal/prompts"
	"cophysicist/internal/tooling"
)

// Version is set via -ldflags during build
var Version = "dev"

func main() {
	var (
		workspaceFlag = flag.String("workspace", "", "Override the workspace directory")
		promptFlag    = flag.String("p", "", "Execute a single prompt and exit (non-interactive mode)")
		mcpFlag       = flag.Bool("mcp", false, "Serve the workspace tools over MCP on stdio")
		configFlag    = flag.String("config", "", "Path to a config file (default ~/.cophysicist/config.yaml)")
		providerFlag  = flag.String("provider", "", "Override the provider (openai, anthropic, openrouter, mock)")
		versionFlag   = flag.Bool("version", false, "Print version and exit")
	)
	flag.StringVar(promptFlag, "prompt", "", "Execute a single prompt and exit (non-interactive mode)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Co-Physicist version %s\n", Version)
		return
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.OverrideWorkspaceRoot(*workspaceFlag)
	cfg.OverrideProvider(*providerFlag)
	if os.Getenv("COPHYSICIST_MOCK_LLM") == "1" {
		cfg.OverrideProvider(config.ProviderMock)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logCloser, err := logging.Setup(logging.Options{Path: cfg.LogPath})
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logCloser.Close()

	guard, err := tooling.NewPathGuard(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("Failed to resolve workspace root: %v", err)
	}
	store := tooling.NewStore(guard)
	runner := tooling.NewRunner(store, tooling.RunnerOptions{
		Interpreter:    cfg.Interpreter,
		Timeout:        cfg.ScriptTimeout(),
		MaxOutputBytes: cfg.MaxOutputBytes,
	})
	dispatcher := tooling.NewDispatcher(store, runner)

	var calls *journal.Journal
	if j, err := journal.Open(cfg.JournalPath); err != nil {
		logging.ErrorLog("tool journal disabled: %v", err)
	} else {
		calls = j
		defer calls.Close()
		dispatcher = dispatcher.WithRecorder(calls)
	}

	prompts.SetMetadata(buildEnvironmentMetadata(store.Root(), cfg.Interpreter))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if *mcpFlag {
		mcpCtx, mcpStop := signal.NotifyContext(ctx, os.Interrupt)
		defer mcpStop()
		if err := mcpserver.Serve(mcpCtx, dispatcher, Version); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("MCP server failed: %v", err)
		}
		return
	}

	client, err := buildClient(cfg, credentials.NewManager())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialization error: %v\n", err)
		if envVar := credentials.EnvVar(cfg.Provider); envVar != "" {
			fmt.Fprintf(os.Stderr, "Please make sure you have set your %s environment variable.\n", envVar)
		}
		os.Exit(1)
	}
	logging.DevLog("using provider %s with model %s", cfg.Provider, cfg.Model)

	a := agent.New(client, cfg, dispatcher)
	opts := agent.REPLOptions{HistoryPath: cfg.HistoryPath}
	if calls != nil {
		opts.Journal = calls
	}
	repl := agent.NewREPL(a, opts)

	if p := strings.TrimSpace(*promptFlag); p != "" {
		if err := repl.RunOneShot(ctx, p); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := repl.Run(ctx); err != nil {
		log.Fatalf("Session failed: %v", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path = strings.TrimSpace(path); path != "" {
		return config.Load(path)
	}
	if err := config.EnsureDefaultConfig(); err != nil {
		logging.ErrorLog("could not write default config: %v", err)
	}
	return config.LoadUserConfig()
}

type keySource interface {
	APIKey(provider string) (string, error)
}

// buildClient constructs the completion client for the configured provider.
func buildClient(cfg config.Config, keys keySource) (llm.Client, error) {
	if cfg.Provider == config.ProviderMock {
		return mockclient.New(), nil
	}
	apiKey, err := keys.APIKey(cfg.Provider)
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(apiKey, cfg.BaseURL, cfg.RequestTimeout())
	case config.ProviderAnthropic:
		return anthropic.NewClient(apiKey, cfg.BaseURL, cfg.RequestTimeout())
	case config.ProviderOpenRouter:
		return openrouter.NewClient(cfg.BaseURL, apiKey, cfg.RequestTimeout())
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

func buildEnvironmentMetadata(workspace, interpreter string) string {
	now := time.Now()
	zoneName, offset := now.Zone()
	if strings.TrimSpace(zoneName) == "" {
		zoneName = "Local"
	}
	lines := []string{
		fmt.Sprintf("- OS: %s (%s)", runtime.GOOS, runtime.GOARCH),
		fmt.Sprintf("- Date: %s", now.Format("2006-01-02")),
		fmt.Sprintf("- Timezone: %s (UTC%s)", zoneName, formatUTCOffset(offset)),
	}
	if path, err := exec.LookPath(interpreter); err == nil {
		lines = append(lines, fmt.Sprintf("- Python interpreter: %s", path))
	} else {
		lines = append(lines, fmt.Sprintf("- Python interpreter: %s (not found on PATH; scripts cannot run)", interpreter))
	}
	if workspace != "" {
		lines = append(lines, fmt.Sprintf("- Workspace Root: %s", workspace))
	}
	if Version != "" {
		lines = append(lines, fmt.Sprintf("- Co-Physicist Version: %s", Version))
	}
	return strings.Join(lines, "\n")
}

func formatUTCOffset(offsetSeconds int) string {
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	hours := offsetSeconds / 3600
	minutes := (offsetSeconds % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, hours, minutes)
}
