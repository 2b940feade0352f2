// Package main provides the CLI entry point for the local-first LLM
// agent runtime: an interactive REPL, a "serve" alias for running
// unattended against piped stdin, and a "status" command reporting
// model residency and execution history (SPEC_FULL.md's AMBIENT STACK,
// CLI section).
//
// Usage:
//
//	agentd                  # interactive REPL against agent.yaml
//	agentd serve --config x.yaml
//	agentd status --config x.yaml
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/executor"
	"github.com/haasonsaas/nexus/internal/agentic/history"
	"github.com/haasonsaas/nexus/internal/agentic/modelrouter"
	"github.com/haasonsaas/nexus/internal/agentic/orchestrator"
	"github.com/haasonsaas/nexus/internal/agentic/tools"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
	"github.com/haasonsaas/nexus/internal/backend"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/logging"
	"github.com/haasonsaas/nexus/internal/observability"
)

var (
	version    = "dev"
	configPath string
)

var redactRE = compileRedactPatterns(observability.DefaultRedactPatterns)

func compileRedactPatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "agentd",
		Short:   "Local-first LLM agent runtime",
		Long:    "agentd drives a bounded generate/parse/execute/verify loop against a local inference backend, with no positional arguments: the default action is an interactive REPL.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agent.yaml", "path to the agent configuration file")

	rootCmd.AddCommand(buildServeCmd(), buildStatusCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REPL against piped stdin (no TTY required)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), configPath)
		},
	}
}

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report model residency and execution history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), configPath)
		},
	}
}

// loaded bundles everything main.go wires together for one process
// lifetime: the Runtime, its Execution History Store (so it can be
// closed on exit), and the resolved configuration.
type loaded struct {
	runtime   *orchestrator.Runtime
	store     *history.Store
	cfg       *config.Config
	logFile   io.Closer
	obsLogger *observability.Logger
}

func buildRuntime(cfgPath string) (*loaded, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	workspace := cfg.Agent.Workspace
	if workspace == "" {
		workspace = "."
	}

	logOutput := os.Stderr
	var logCloser io.Closer
	var logWriter io.Writer = logOutput
	if cfg.Agent.Logging.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.Agent.Logging.LogFile, int64(cfg.Agent.Logging.MaxLogSize), cfg.Agent.Logging.BackupCount)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logWriter = rw
		logCloser = rw
	}
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Agent.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: level}))

	// obsLogger redacts secrets (API keys, tokens, passwords) out of
	// anything a tool call's output surfaces to the terminal — read_file
	// can return file content verbatim, so the REPL echoes tool-derived
	// text through it rather than a bare fmt.Fprint.
	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Agent.Logging.Level,
		Format: "text",
		Output: os.Stderr,
	})

	client := backend.New(backend.Config{
		Host:    orDefault(cfg.Ollama.Host, "localhost"),
		Port:    orDefaultInt(cfg.Ollama.Port, 11434),
		Timeout: orDefaultDuration(cfg.Ollama.Timeout, 60),
	})

	metrics := toolrouter.NewMetrics(prometheus.DefaultRegisterer)
	registry := toolrouter.New(nil, metrics)
	tools.NewFilesystem(workspace, cfg.Agent.Security.MaxFileSize).Register(registry)

	var store *history.Store
	if cfg.ExecutionHistory.Enabled {
		logsDir := filepath.Join(workspace, "logs")
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create logs directory: %w", err)
		}
		dbPath := filepath.Join(logsDir, "execution_history.db")
		store, err = history.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open execution history: %w", err)
		}
	}

	models := modelrouter.ModelSet{
		ContextMaster: core.ModelID(orDefault(cfg.Ollama.MultiModel.Models.Reasoning.Name, cfg.Ollama.Model)),
		Executor:      core.ModelID(orDefault(cfg.Ollama.MultiModel.Models.Execution.Name, cfg.Ollama.Model)),
		Fixer:         core.ModelID(orDefault(cfg.Ollama.MultiModel.Models.Fixer.Name, cfg.Ollama.Model)),
	}

	rt := orchestrator.New(client, registry, store, orchestrator.Config{
		Logger:         logger,
		Models:         models,
		Workspace:      workspace,
		MaxHistoryMsgs: 200,
		GenOptions: backend.Options{
			Temperature: cfg.Ollama.Temperature,
			NumCtx:      cfg.Ollama.NumCtx,
			NumPredict:  cfg.Ollama.NumPredict,
		},
		Timeouts: executor.TwoPhaseTimeouts{
			Planning:  orDefaultDuration(cfg.Ollama.PlanningTimeout, 180),
			Execution: orDefaultDuration(cfg.Ollama.ExecutionTimeout, 240),
		},
	})

	return &loaded{runtime: rt, store: store, cfg: cfg, logFile: logCloser, obsLogger: obsLogger}, nil
}

func (l *loaded) Close() {
	if l.store != nil {
		_ = l.store.Close()
	}
	if l.logFile != nil {
		_ = l.logFile.Close()
	}
}

// runREPL reads stdin lines until quit/exit/q, dispatching everything
// else as a Chat request, per spec §6's CLI surface.
func runREPL(ctx context.Context, cfgPath string) error {
	l, err := buildRuntime(cfgPath)
	if err != nil {
		return err
	}
	defer l.Close()

	l.runtime.Bus().Subscribe(l.printEvent)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprintln(os.Stdout, "agentd ready — type a request, or quit/exit/q to leave.")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			return nil
		case "/metrics":
			fmt.Fprintln(os.Stdout, metricsReport(ctx, l))
			continue
		case "/metrics export":
			if err := exportMetrics(l); err != nil {
				fmt.Fprintln(os.Stderr, "export failed:", err)
			} else {
				fmt.Fprintln(os.Stdout, "metrics written to logs/metrics.json")
			}
			continue
		}

		resp := l.runtime.Chat(ctx, orchestrator.Request{Text: line, SessionID: "repl"})
		fmt.Fprintln(os.Stdout, redactSecrets(resp))
	}
	return scanner.Err()
}

// redactSecrets strips anything matching observability's default
// secret-redaction patterns (API keys, bearer tokens, passwords) from
// text a tool call could have pulled verbatim out of the workspace
// (read_file) before it reaches the terminal.
func redactSecrets(s string) string {
	for _, re := range redactRE {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func runStatus(ctx context.Context, cfgPath string) error {
	l, err := buildRuntime(cfgPath)
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Println(metricsReport(ctx, l))
	return nil
}

// printEvent streams progress to stderr. Thinking/planning chunks and
// tool-result error text pass through l.obsLogger so any secret a tool
// call surfaced (e.g. read_file echoing a file's contents back into a
// reasoning-model chunk) is redacted before it reaches the terminal.
func (l *loaded) printEvent(e core.Event) {
	ctx := context.Background()
	switch e.Type {
	case core.EventStatusChange:
		if e.Status != nil {
			fmt.Fprintf(os.Stderr, "[status] %s\n", e.Status.Phase)
		}
	case core.EventThinking:
		if e.Thinking != nil {
			l.obsLogger.Debug(ctx, redactSecrets(e.Thinking.Chunk))
		}
	case core.EventToolCall:
		if e.Tool != nil {
			fmt.Fprintf(os.Stderr, "[tool %d/%d] %s\n", e.Tool.Index+1, e.Tool.Total, e.Tool.Call.Name)
		}
	case core.EventToolResult:
		if e.Tool != nil {
			status := "ok"
			if !e.Tool.Result.Success {
				status = "failed: " + redactSecrets(e.Tool.Result.Error)
			}
			fmt.Fprintf(os.Stderr, "[tool %d/%d] %s -> %s\n", e.Tool.Index+1, e.Tool.Total, e.Tool.Call.Name, status)
		}
	case core.EventPlanningProgress:
		if e.Plan != nil {
			l.obsLogger.Debug(ctx, redactSecrets(e.Plan.Chunk))
		}
	case core.EventError:
		if e.Error != nil {
			l.obsLogger.Error(ctx, redactSecrets(e.Error.Message))
		}
	}
}

// metricsReport renders the human-readable /metrics output: the Model
// Manager's swap report (SPEC_FULL.md's supplemented swap-time
// statistics report) plus the Execution History summary, when enabled.
func metricsReport(ctx context.Context, l *loaded) string {
	var b strings.Builder
	b.WriteString("agent status\n")
	b.WriteString(fmt.Sprintf("  version: %s\n", version))
	if l.store != nil {
		summary, err := l.store.Summary(ctx)
		if err != nil {
			b.WriteString(fmt.Sprintf("  execution history: error: %v\n", err))
		} else {
			b.WriteString(fmt.Sprintf("  execution history: %d executions, %.1f%% success\n", summary.TotalExecutions, summary.SuccessRate*100))
		}
	} else {
		b.WriteString("  execution history: disabled\n")
	}
	return b.String()
}

func exportMetrics(l *loaded) error {
	doc := map[string]any{"version": version}
	if l.store != nil {
		ctx := context.Background()
		if summary, err := l.store.Summary(ctx); err == nil {
			doc["execution_history"] = summary
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	workspace := l.cfg.Agent.Workspace
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metrics.json"), data, 0o644)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultDuration(v time.Duration, defSeconds int) time.Duration {
	if v == 0 {
		return time.Duration(defSeconds) * time.Second
	}
	return v
}
