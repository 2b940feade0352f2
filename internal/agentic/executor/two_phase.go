// Two-Phase Executor (C10): plan with the planning model, streaming plan
// chunks as they arrive, then execute with the execution model using the
// same parse→dispatch pipeline as the single-phase executor. Grounded on
// original_source/tools/executors/two_phase.py's TwoPhaseExecutor.
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

// TwoPhaseTimeouts configures the per-phase deadlines spec §4.10 requires.
type TwoPhaseTimeouts struct {
	Planning  time.Duration // default 180s
	Execution time.Duration // default 240s
}

// TwoPhaseResult is the outcome of a two-phase execution.
type TwoPhaseResult struct {
	Success         bool
	Plan            string
	ExecutionResult string
	ToolCalls       []core.ToolCallOutcome
	Error           string
}

// TwoPhase runs the planning→execution pipeline. It shares the Registry,
// Parser and Bus with the single-phase Executor but keeps its own model
// calls, since the two phases use distinct models and options.
type TwoPhase struct {
	models   *modelmanager.Manager
	tools    *toolrouter.Registry
	parser   *parser.Parser
	bus      *events.Bus
	timeouts TwoPhaseTimeouts
}

// NewTwoPhase creates a Two-Phase Executor.
func NewTwoPhase(models *modelmanager.Manager, tools *toolrouter.Registry, p *parser.Parser, bus *events.Bus, timeouts TwoPhaseTimeouts) *TwoPhase {
	if timeouts.Planning <= 0 {
		timeouts.Planning = 180 * time.Second
	}
	if timeouts.Execution <= 0 {
		timeouts.Execution = 240 * time.Second
	}
	return &TwoPhase{models: models, tools: tools, parser: p, bus: bus, timeouts: timeouts}
}

// Run executes the two phases in order. On a planning failure, phase 2 is
// never entered. On an execution failure with partial tool calls, success
// is reported iff every dispatched call succeeded.
func (t *TwoPhase) Run(ctx context.Context, planningModel, executionModel core.ModelID, request string) TwoPhaseResult {
	plan, err := t.planningPhase(ctx, planningModel, request)
	if err != nil {
		return TwoPhaseResult{Error: fmt.Sprintf("planning phase failed: %v", err)}
	}

	return t.executionPhase(ctx, executionModel, request, plan)
}

// planningPhase streams the planning model's generation, assembling the
// full plan text from chunks and publishing a PlanningProgress event
// every 10 chunks, matching two_phase.py's chunk_count % 10 cadence.
func (t *TwoPhase) planningPhase(ctx context.Context, model core.ModelID, request string) (string, error) {
	planCtx, cancel := context.WithTimeout(ctx, t.timeouts.Planning)
	defer cancel()

	if _, err := t.models.EnsureResident(planCtx, model); err != nil {
		return "", err
	}

	prompt := planningPrompt(request)
	opts := backend.Options{Temperature: 0.8, NumPredict: 1024, NumCtx: 8192}

	chunks, err := t.client().Stream(planCtx, string(model), prompt, 0, opts)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	count := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			count++
			if count%10 == 0 {
				t.publish(core.Event{Type: core.EventPlanningProgress, Plan: &core.PlanPayload{Chunk: preview(sb.String()), Done: false}})
			}
		}
		if chunk.Done {
			break
		}
	}

	t.publish(core.Event{Type: core.EventPlanningProgress, Plan: &core.PlanPayload{Done: true}})
	return strings.TrimSpace(parser.StripThinking(sb.String())), nil
}

// executionPhase issues a single generate call with the original request
// plus the full plan, then parses and dispatches exactly as the
// single-phase executor does.
func (t *TwoPhase) executionPhase(ctx context.Context, model core.ModelID, request, plan string) TwoPhaseResult {
	execCtx, cancel := context.WithTimeout(ctx, t.timeouts.Execution)
	defer cancel()

	opts := backend.Options{Temperature: 0.3, NumPredict: 6144, NumCtx: 8192}
	call := t.models.Call(execCtx, model, executionPrompt(request, plan), opts)
	if !call.Success {
		return TwoPhaseResult{Plan: plan, Error: call.Error}
	}

	calls := t.parser.Parse(call.Text)
	if len(calls) == 0 {
		return TwoPhaseResult{Plan: plan, Error: "no tool calls generated"}
	}

	outcomes := make([]core.ToolCallOutcome, 0, len(calls))
	allOK := true
	for i, c := range calls {
		t.publish(core.Event{Type: core.EventToolCall, Tool: &core.ToolEventPayload{Index: i, Total: len(calls), Call: c}})
		result := t.tools.Dispatch(ctx, c)
		if !result.Success {
			allOK = false
		}
		t.publish(core.Event{Type: core.EventToolResult, Tool: &core.ToolEventPayload{Index: i, Total: len(calls), Call: c, Result: result}})
		outcomes = append(outcomes, core.ToolCallOutcome{Name: c.Name, Params: c.Params, Success: result.Success, Error: result.Error})
	}

	successCount := 0
	for _, o := range outcomes {
		if o.Success {
			successCount++
		}
	}

	return TwoPhaseResult{
		Success:         allOK,
		Plan:            plan,
		ExecutionResult: fmt.Sprintf("executed %d/%d tool calls successfully", successCount, len(outcomes)),
		ToolCalls:       outcomes,
	}
}

func (t *TwoPhase) client() *backend.Client {
	return t.models.BackendClient()
}

func (t *TwoPhase) publish(ev core.Event) {
	if t.bus == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	t.bus.Publish(ev)
}

func preview(plan string) string {
	if len(plan) <= 100 {
		return plan
	}
	return plan[len(plan)-100:]
}

func planningPrompt(request string) string {
	return fmt.Sprintf(`You are an expert software architect and creative designer.

User request: %s

Create a DETAILED implementation plan. Include:

1. File Structure: what files to create and their purpose
2. Content Design: specific content, styling approaches, color schemes
3. Implementation Details: key features, code structure, best practices

Be specific and creative. Provide actual content ideas, not placeholders.

Format your response as a clear, structured plan:`, request)
}

func executionPrompt(request, plan string) string {
	return fmt.Sprintf(`Task: %s

Plan to implement:
%s

Generate file creation tool calls in this format:
TOOL: write_file | PARAMS: {"path": "filename.ext", "content": "actual code here"}

Output tool calls only:`, request, plan)
}
