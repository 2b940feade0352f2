// Package executor implements the Single-Phase (C9) and Two-Phase (C10)
// Executors: the generate→parse→dispatch loops that turn one model
// response into tool calls and results. Grounded on
// original_source/tools/executor.py's single-call execution path and
// internal/agent's provider-call/parse/dispatch sequencing.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/events"
	"github.com/haasonsaas/nexus/internal/agentic/modelmanager"
	"github.com/haasonsaas/nexus/internal/agentic/parser"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
	"github.com/haasonsaas/nexus/internal/backend"
)

// reasoningModelSubstrings is the allow-list of model-name fragments
// treated as "reasoning family" for the thinking-only recovery path.
var reasoningModelSubstrings = []string{"deepseek-r1", "qwq", "o1", "r1"}

// Result is the outcome of a single-phase execution round.
type Result struct {
	Success   bool
	Response  string
	ToolCalls []core.ToolCallOutcome
	Error     string
}

// Executor runs the single-phase generate→parse→dispatch loop.
type Executor struct {
	models *modelmanager.Manager
	tools  *toolrouter.Registry
	parser *parser.Parser
	bus    *events.Bus
	opts   backend.Options
}

// New creates a single-phase Executor.
func New(models *modelmanager.Manager, tools *toolrouter.Registry, p *parser.Parser, bus *events.Bus, opts backend.Options) *Executor {
	return &Executor{models: models, tools: tools, parser: p, bus: bus, opts: opts}
}

// Run issues one generate call with model against prompt, parses any
// tool calls out of the response, dispatches each through the
// registry, and assembles a combined Result. This is a single
// round-trip; callers re-enter via Progressive Retry (C12) rather than
// looping internally.
func (e *Executor) Run(ctx context.Context, model core.ModelID, systemPrompt, userPrompt string) Result {
	prompt := buildPrompt(systemPrompt, userPrompt)

	call := e.models.Call(ctx, model, prompt, e.opts)
	if !call.Success {
		return Result{Error: call.Error}
	}

	response := call.Text
	calls := e.parser.Parse(response)

	if len(calls) == 0 && e.parser.HasThinkingOnly(response) && isReasoningModel(model) {
		response = e.followUp(ctx, model, prompt, response)
		calls = e.parser.Parse(response)
	}

	if len(calls) == 0 {
		prose := e.parser.StripThinking(response)
		return Result{Success: true, Response: strings.TrimSpace(prose)}
	}

	outcomes, allOK := e.dispatchAll(ctx, calls)
	prose := prosePrefix(e.parser.StripThinking(response))
	return Result{
		Success:   allOK,
		Response:  buildResponse(prose, outcomes),
		ToolCalls: outcomes,
	}
}

// followUp issues one additional call at low temperature asking the
// model to emit only tool calls, per spec §4.9's reasoning-model
// recovery path.
func (e *Executor) followUp(ctx context.Context, model core.ModelID, priorPrompt, priorResponse string) string {
	opts := e.opts
	opts.Temperature = 0.1
	prompt := priorPrompt + "\n\n" + priorResponse + "\n\nEmit only tool calls, no further reasoning."

	call := e.models.Call(ctx, model, prompt, opts)
	if !call.Success {
		return priorResponse
	}
	return call.Text
}

func (e *Executor) dispatchAll(ctx context.Context, calls []core.ToolCall) ([]core.ToolCallOutcome, bool) {
	outcomes := make([]core.ToolCallOutcome, 0, len(calls))
	allOK := true

	for i, call := range calls {
		e.publish(core.Event{Type: core.EventToolCall, Tool: &core.ToolEventPayload{Index: i, Total: len(calls), Call: call}})

		result := e.tools.Dispatch(ctx, call)
		if !result.Success {
			allOK = false
		}

		e.publish(core.Event{Type: core.EventToolResult, Tool: &core.ToolEventPayload{Index: i, Total: len(calls), Call: call, Result: result}})

		outcomes = append(outcomes, core.ToolCallOutcome{
			Name:    call.Name,
			Params:  call.Params,
			Success: result.Success,
			Error:   result.Error,
		})
	}
	return outcomes, allOK
}

func (e *Executor) publish(ev core.Event) {
	if e.bus == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.bus.Publish(ev)
}

func buildPrompt(systemPrompt, userPrompt string) string {
	if systemPrompt == "" {
		return userPrompt
	}
	return systemPrompt + "\n\n" + userPrompt
}

// prosePrefix returns the text preceding the first TOOL: header, per
// spec §4.9's "concatenate prose prefix" requirement.
func prosePrefix(stripped string) string {
	if idx := strings.Index(stripped, "TOOL:"); idx >= 0 {
		return strings.TrimSpace(stripped[:idx])
	}
	return strings.TrimSpace(stripped)
}

func buildResponse(prose string, outcomes []core.ToolCallOutcome) string {
	var sb strings.Builder
	if prose != "" {
		sb.WriteString(prose)
		sb.WriteString("\n\n")
	}
	for _, o := range outcomes {
		status := "ok"
		if !o.Success {
			status = "failed: " + o.Error
		}
		fmt.Fprintf(&sb, "- %s: %s\n", o.Name, status)
	}
	return strings.TrimSpace(sb.String())
}

func isReasoningModel(model core.ModelID) bool {
	lower := strings.ToLower(string(model))
	for _, s := range reasoningModelSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
