// Package retry implements Progressive Retry (C12): a three-attempt
// escalation state machine (same model, enhanced prompt, emergency
// model) capped at 3 attempts total. Grounded on
// original_source/tools/progressive_retry.py's ProgressiveRetrySystem.
package retry

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

// MaxAttempts is the global cap on attempts per Request (spec §7).
const MaxAttempts = 3

// urgencyKeywords trigger the criticality predicate regardless of tier.
var urgencyKeywords = []string{"important", "critical", "urgent", "must", "required"}

// AttemptFunc issues one generate+dispatch round with model against
// prompt, returning a Result compatible with the single-phase Executor's
// Result shape.
type AttemptFunc func(ctx context.Context, model core.ModelID, prompt string) (response string, success bool, errMsg string)

// Outcome is the result of ExecuteWithRetry.
type Outcome struct {
	Success     bool
	Response    string
	FinalModel  core.ModelID
	State       core.RetryState
	GaveUpEarly bool // true when a non-critical task stopped after 2 attempts
}

// Retrier runs the Progressive Retry state machine over an AttemptFunc.
type Retrier struct {
	executor core.ModelID
	fixer    core.ModelID
	attempt  AttemptFunc
}

// New creates a Retrier bound to the executor and fixer models and the
// function used to run one attempt.
func New(executor, fixer core.ModelID, attempt AttemptFunc) *Retrier {
	return &Retrier{executor: executor, fixer: fixer, attempt: attempt}
}

// Run drives FirstAttempt → EnhancedRetry → (EmergencyRetry) → Done.
func (r *Retrier) Run(ctx context.Context, request string, tier core.Tier) Outcome {
	state := core.RetryState{}

	standard := buildStandardPrompt(request)
	a1 := r.runAttempt(ctx, r.executor, standard, "standard", &state)
	if a1.Success {
		return Outcome{Success: true, Response: a1.Response, FinalModel: r.executor, State: state}
	}

	enhanced := buildEnhancedPrompt(request, state.Attempts)
	a2 := r.runAttempt(ctx, r.executor, enhanced, "enhanced", &state)
	if a2.Success {
		return Outcome{Success: true, Response: a2.Response, FinalModel: r.executor, State: state}
	}

	if !isCritical(request, tier, state.Attempts) {
		return Outcome{Success: false, FinalModel: r.executor, State: state, GaveUpEarly: true}
	}

	state.Escalated = true
	debug := buildDebuggingPrompt(request, state.Attempts)
	a3 := r.runAttempt(ctx, r.fixer, debug, "debug", &state)
	return Outcome{Success: a3.Success, Response: a3.Response, FinalModel: r.fixer, State: state}
}

func (r *Retrier) runAttempt(ctx context.Context, model core.ModelID, prompt, kind string, state *core.RetryState) core.AttemptRecord {
	response, success, errMsg := r.attempt(ctx, model, prompt)
	rec := core.AttemptRecord{Model: model, PromptKind: kind, Success: success, Response: response, Error: errMsg}
	state.Attempts = append(state.Attempts, rec)
	return rec
}

// buildStandardPrompt mirrors _build_standard_prompt's bare task framing.
func buildStandardPrompt(request string) string {
	return fmt.Sprintf("Task: %s\n", request)
}

// buildEnhancedPrompt embeds the prior error and asks for a different
// approach, at zero swap cost (same model).
func buildEnhancedPrompt(request string, attempts []core.AttemptRecord) string {
	var sb strings.Builder
	sb.WriteString("RETRY ATTEMPT - Previous attempt failed\n\n")
	fmt.Fprintf(&sb, "Original Task: %s\n\n", request)

	if len(attempts) > 0 {
		last := attempts[len(attempts)-1]
		err := last.Error
		if err == "" {
			err = "Unknown error"
		}
		fmt.Fprintf(&sb, "Previous Error: %s\n\n", err)
	}

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. Carefully analyze why the previous attempt failed\n")
	sb.WriteString("2. Use a different approach to solve the task\n")
	sb.WriteString("3. Double-check your work before responding\n")
	sb.WriteString("4. If the task requires file operations, verify paths exist\n\n")
	sb.WriteString("Please retry the task with these improvements:\n")
	return sb.String()
}

// buildDebuggingPrompt enumerates every prior failure mode for the
// emergency model, per spec §4.12.
func buildDebuggingPrompt(request string, attempts []core.AttemptRecord) string {
	var sb strings.Builder
	sb.WriteString("EMERGENCY RETRY - Multiple failures detected\n\n")
	fmt.Fprintf(&sb, "Original Task: %s\n\n", request)

	sb.WriteString("FAILURE HISTORY:\n")
	for i, a := range attempts {
		fmt.Fprintf(&sb, "\nAttempt %d (%s):\n", i+1, a.Model)
		errMsg := a.Error
		if errMsg == "" {
			errMsg = "Failed"
		}
		fmt.Fprintf(&sb, "  Error: %s\n", errMsg)
		if a.Response != "" {
			preview := a.Response
			if len(preview) > 200 {
				preview = preview[:200]
			}
			fmt.Fprintf(&sb, "  Response: %s...\n", preview)
		}
	}

	sb.WriteString("\nDEEP ANALYSIS REQUIRED:\n")
	sb.WriteString("1. Analyze all previous failure modes\n")
	sb.WriteString("2. Identify root cause of failures\n")
	sb.WriteString("3. Design a completely different approach\n")
	sb.WriteString("4. Consider edge cases and potential issues\n")
	sb.WriteString("5. Provide detailed reasoning for your solution\n\n")
	sb.WriteString("Use your advanced reasoning capabilities to solve this task:\n")
	return sb.String()
}

// isCritical implements the criticality predicate from spec §4.12: any
// urgency keyword, a complex tier, or a prior ≥100-char response.
func isCritical(request string, tier core.Tier, attempts []core.AttemptRecord) bool {
	lower := strings.ToLower(request)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if tier == core.TierComplex {
		return true
	}
	for _, a := range attempts {
		if len(a.Response) >= 100 {
			return true
		}
	}
	return false
}
