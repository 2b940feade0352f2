// Package orchestrator implements the Orchestrator (C16): the Runtime
// composition root that owns every other component and drives the
// classify → gather → route → execute → verify → retry/recover → log
// pipeline behind Chat. Grounded on original_source/agent.py's Agent
// class (chat, chat_with_verification, _execute_single_phase,
// _execute_two_phase, _retry_failed_actions).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/agentic/classifier"
	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/events"
	"github.com/haasonsaas/nexus/internal/agentic/executor"
	"github.com/haasonsaas/nexus/internal/agentic/gatherer"
	"github.com/haasonsaas/nexus/internal/agentic/history"
	"github.com/haasonsaas/nexus/internal/agentic/modelmanager"
	"github.com/haasonsaas/nexus/internal/agentic/modelrouter"
	"github.com/haasonsaas/nexus/internal/agentic/parser"
	"github.com/haasonsaas/nexus/internal/agentic/recovery"
	"github.com/haasonsaas/nexus/internal/agentic/retry"
	"github.com/haasonsaas/nexus/internal/agentic/sessionhistory"
	"github.com/haasonsaas/nexus/internal/agentic/tokens"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
	"github.com/haasonsaas/nexus/internal/agentic/verifier"
	"github.com/haasonsaas/nexus/internal/backend"
)

// AgentVersion is stamped into every ExecutionRecord.
const AgentVersion = "nexus-agentic/1"

// Request is the immutable input to one Chat call.
type Request struct {
	Text      string
	SessionID string
}

// Runtime is the single composition root owning every agent component.
// No global mutable state exists outside it.
type Runtime struct {
	logger *slog.Logger

	bus        *events.Bus
	classifier *classifier.Classifier
	gatherer   *gatherer.Gatherer
	router     *modelrouter.Router
	models     *modelmanager.Manager
	tools      *toolrouter.Registry
	parser     *parser.Parser
	single     *executor.Executor
	twoPhase   *executor.TwoPhase
	verifier   *verifier.Verifier
	recovery   *recovery.Executor
	history    *history.Store
	sessions   *sessionhistory.History

	workspace string
}

// Config bundles the runtime's construction parameters.
type Config struct {
	Logger         *slog.Logger
	Models         modelrouter.ModelSet
	Workspace      string
	MaxHistoryMsgs int
	GenOptions     backend.Options
	Timeouts       executor.TwoPhaseTimeouts
}

// New wires every component into a single Runtime. client is the
// backend HTTP client; tools must already have its built-in handlers
// registered (see internal/agentic/tools.Filesystem.Register); store is
// the Execution History Store this Runtime is the sole writer of.
func New(client *backend.Client, tools *toolrouter.Registry, store *history.Store, cfg Config) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus := events.New(logger)
	p := parser.New(logger)
	mm := modelmanager.New(client, modelmanager.Config{})
	mr := modelrouter.New(cfg.Models)

	return &Runtime{
		logger:     logger,
		bus:        bus,
		classifier: classifier.New(),
		gatherer:   gatherer.New(tools),
		router:     mr,
		models:     mm,
		tools:      tools,
		parser:     p,
		single:     executor.New(mm, tools, p, bus, cfg.GenOptions),
		twoPhase:   executor.NewTwoPhase(mm, tools, p, bus, cfg.Timeouts),
		verifier:   verifier.New(cfg.Workspace, nil),
		recovery:   recovery.NewExecutor(3),
		history:    store,
		sessions:   sessionhistory.New(cfg.MaxHistoryMsgs),
		workspace:  cfg.Workspace,
	}
}

// Bus exposes the Event Bus so callers (CLI, progress indicators) can
// subscribe before issuing Chat calls.
func (r *Runtime) Bus() *events.Bus { return r.bus }

// Chat runs one request through the full pipeline and returns the final
// response string. Per spec §4.16 it is the only caller that writes to
// the Execution History Store.
func (r *Runtime) Chat(ctx context.Context, req Request) string {
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	start := time.Now()

	r.sessions.Add(req.SessionID, "user", req.Text)
	r.publishStatus(core.PhaseInitializing)

	classification := r.classifier.Classify(req.Text)
	gathered := r.gatherer.GatherForTask(ctx, req.Text)
	decision := r.router.Route(classification)

	accountant := tokens.New(0, nil, r.logger)
	compressed := gatherer.ContextFromMap(accountant.CompressIfNeeded(tokens.PhaseContextGathering, gathered.ToMap()))
	contextText := compressed.FormatForModel()
	accountant.Track(tokens.PhaseContextGathering, contextText)
	accountant.Track(tokens.PhaseSystemPrompt, r.systemPrompt())

	rec := core.ExecutionRecord{
		ID:             uuid.NewString(),
		Timestamp:      time.Now(),
		SessionID:      req.SessionID,
		Request:        req.Text,
		Classification: classification,
		Mode:           classification.Route,
		ModelPrimary:   decision.PrimaryModel,
		ModelPlanning:  decision.PlanningModel,
		ModelExecution: decision.ExecutionModel,
		AgentVersion:   AgentVersion,
	}

	response, err := r.runOnce(ctx, req, contextText, classification, decision, &rec)
	if err != nil {
		response, err = r.recover(ctx, req, contextText, classification, decision, &rec, err)
	}

	execUsage := accountant.Track(tokens.PhaseExecution, response)
	r.logger.Debug("token usage", "report", accountant.UsageReport())

	rec.Duration = time.Since(start)
	rec.Success = err == nil
	rec.Tokens = tokens.DefaultMaxTokens - execUsage.Remaining
	if err != nil {
		rec.ErrorMessage = err.Error()
		rec.ErrorKind = "unknown"
		var ce classifyError
		if errors.As(err, &ce) {
			rec.ErrorKind = string(ce.kind)
		}
	}

	if r.history != nil {
		if _, logErr := r.history.LogExecution(ctx, rec); logErr != nil {
			r.logger.Error("failed to log execution", "error", logErr)
		}
	}

	r.sessions.Add(req.SessionID, "assistant", response)

	if err != nil {
		r.publish(core.Event{Type: core.EventError, Error: &core.ErrorPayload{Message: err.Error()}})
	} else {
		r.publish(core.Event{Type: core.EventComplete, Complete: &core.CompletePayload{Response: response}})
	}

	return response
}

// classifyError tags an orchestrator-internal failure with a recovery
// Kind, for the ones named in spec §7 that no pattern in the table
// would otherwise match (classification/tool-dispatch/planning-phase).
type classifyError struct {
	kind recovery.Kind
	err  error
}

func (c classifyError) Error() string { return c.err.Error() }
func (c classifyError) Unwrap() error { return c.err }

// runOnce invokes the single- or two-phase executor per decision, then
// verifies any produced tool calls, escalating to Progressive Retry on
// verification failure.
func (r *Runtime) runOnce(ctx context.Context, req Request, context string, classification core.Classification, decision modelrouter.Decision, rec *core.ExecutionRecord) (string, error) {
	userPrompt := req.Text
	if context != "" {
		userPrompt = context + "\n\n" + req.Text
	}
	systemPrompt := r.systemPrompt()

	if decision.UseTwoPhase {
		r.publishStatus(core.PhasePlanning)
		if _, err := r.models.EnsureResident(ctx, decision.PlanningModel); err != nil {
			return "", classifyError{recovery.KindPlanningPhaseErr, err}
		}

		result := r.twoPhase.Run(ctx, decision.PlanningModel, decision.ExecutionModel, userPrompt)
		rec.ToolCalls = result.ToolCalls
		if result.Error != "" {
			return "", classifyError{recovery.KindPlanningPhaseErr, errors.New(result.Error)}
		}

		if err := r.verifyOutcomes(result.ToolCalls); err != nil {
			return r.retryAfterVerification(ctx, req, classification, decision, rec, err)
		}

		response := fmt.Sprintf("Planning Model: %s\nExecution Model: %s\n\n%s", decision.PlanningModel, decision.ExecutionModel, result.ExecutionResult)
		return response, nil
	}

	r.publishStatus(core.PhaseCallingLLM)
	if _, err := r.models.EnsureResident(ctx, decision.PrimaryModel); err != nil {
		return "", classifyError{recovery.KindModelError, err}
	}

	result := r.single.Run(ctx, decision.PrimaryModel, systemPrompt, userPrompt)
	rec.ToolCalls = result.ToolCalls
	if !result.Success && result.Error != "" {
		return "", classifyError{recovery.KindModelError, errors.New(result.Error)}
	}

	if err := r.verifyOutcomes(result.ToolCalls); err != nil {
		return r.retryAfterVerification(ctx, req, classification, decision, rec, err)
	}

	return result.Response, nil
}

// verifyOutcomes checks every produced tool call against its post-state
// and returns a combined error describing the first failure, or nil.
func (r *Runtime) verifyOutcomes(outcomes []core.ToolCallOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	r.publishStatus(core.PhaseVerifying)
	var issues []string
	for _, o := range outcomes {
		verification := r.verifier.VerifyAction(o.Name, o.Params, core.ToolResult{Success: o.Success, Error: o.Error})
		if !verification.Verified {
			issues = append(issues, fmt.Sprintf("%s: %s", o.Name, strings.Join(verification.Issues, "; ")))
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return fmt.Errorf("verification failed: %s", strings.Join(issues, " | "))
}

// retryAfterVerification invokes Progressive Retry once the original
// attempt's tool calls failed verification, matching
// _retry_failed_actions's escalation to a smarter model.
func (r *Runtime) retryAfterVerification(ctx context.Context, req Request, classification core.Classification, decision modelrouter.Decision, rec *core.ExecutionRecord, verifyErr error) (string, error) {
	retrier := retry.New(decision.ExecutionModel, r.router.SelectForFixer(), func(ctx context.Context, model core.ModelID, prompt string) (string, bool, string) {
		result := r.single.Run(ctx, model, r.systemPrompt(), prompt)
		rec.ToolCalls = append(rec.ToolCalls, result.ToolCalls...)
		if !result.Success {
			return result.Response, false, result.Error
		}
		if err := r.verifyOutcomes(result.ToolCalls); err != nil {
			return result.Response, false, err.Error()
		}
		return result.Response, true, ""
	})

	outcome := retrier.Run(ctx, verifyErr.Error()+"\n\nOriginal request: "+req.Text, classification.Tier)
	rec.ModelExecution = outcome.FinalModel
	if !outcome.Success {
		return "", fmt.Errorf("%w (retry exhausted)", verifyErr)
	}
	return outcome.Response, nil
}

// recover attempts Error Classifier & Recovery on an orchestrator-level
// failure, retrying through the original single-phase path.
func (r *Runtime) recover(ctx context.Context, req Request, context string, classification core.Classification, decision modelrouter.Decision, rec *core.ExecutionRecord, origErr error) (string, error) {
	errType := ""
	var ce classifyError
	if errors.As(origErr, &ce) {
		errType = string(ce.kind)
	}

	recCtx := recovery.Context{UserMessage: req.Text, Workspace: r.workspace}
	outcome := r.recovery.AttemptRecovery(ctx, origErr.Error(), errType, recCtx, func(ctx context.Context, prompt string) (string, bool, error) {
		result := r.single.Run(ctx, decision.PrimaryModel, r.systemPrompt(), prompt)
		rec.ToolCalls = append(rec.ToolCalls, result.ToolCalls...)
		if !result.Success {
			return result.Response, false, errors.New(result.Error)
		}
		return result.Response, true, nil
	})

	if !outcome.Recovered {
		return "", origErr
	}
	return outcome.Result, nil
}

func (r *Runtime) systemPrompt() string {
	names := r.tools.Names()
	if len(names) == 0 {
		return ""
	}
	return "Available tools: " + strings.Join(names, ", ") +
		"\nTo use a tool, emit a line: TOOL: <name> | PARAMS: {\"key\": \"value\"}"
}

func (r *Runtime) publishStatus(phase core.Phase) {
	r.publish(core.Event{Type: core.EventStatusChange, Status: &core.StatusPayload{Phase: phase}})
}

func (r *Runtime) publish(ev core.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	r.bus.Publish(ev)
}
