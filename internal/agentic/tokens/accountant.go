// Package tokens implements the Token Accountant: a per-phase budget
// tracker using the bytes/4 estimation heuristic, grounded on
// original_source/tools/token_counter.py's TokenCounter.
package tokens

import (
	"fmt"
	"log/slog"
	"sync"
)

// Phase names one of the five budgeted phases of a Chat call.
type Phase string

const (
	PhaseContextGathering Phase = "context_gathering"
	PhasePlanning         Phase = "planning"
	PhaseExecution        Phase = "execution"
	PhaseVerification     Phase = "verification"
	PhaseSystemPrompt     Phase = "system_prompt"
)

// defaultBudgets mirrors TokenCounter.get_budget_for_phase's hardcoded table.
var defaultBudgets = map[Phase]int{
	PhaseContextGathering: 2000,
	PhasePlanning:         2000,
	PhaseExecution:        2500,
	PhaseVerification:     1000,
	PhaseSystemPrompt:     500,
}

const defaultPhaseBudget = 1000

// DefaultMaxTokens is the total budget across all phases.
const DefaultMaxTokens = 8000

// TrackResult is returned by Track.
type TrackResult struct {
	Tokens       int
	Phase        Phase
	WithinBudget bool
	Remaining    int
	UsagePercent float64
}

// Compressor reduces oversized content to fit within a token budget.
// Estimate must use the same bytes/4 heuristic as EstimateTokens so
// compression decisions stay consistent with tracking decisions.
type Compressor interface {
	CompressContext(ctx map[string]any, maxTokens int) map[string]any
	CompressPlan(plan string, maxTokens int) string
	CompressResults(results []map[string]any, maxTokens int) []map[string]any
}

// Accountant tracks token usage per phase against a configured maximum
// and compresses content that exceeds its phase budget.
type Accountant struct {
	mu         sync.Mutex
	maxTokens  int
	usage      map[Phase]int
	total      int
	logger     *slog.Logger
	compressor Compressor
}

// New creates an Accountant with the given total budget (0 selects
// DefaultMaxTokens) and compressor (nil selects the default
// Compressor).
func New(maxTokens int, compressor Compressor, logger *slog.Logger) *Accountant {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if compressor == nil {
		compressor = NewDefaultCompressor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Accountant{
		maxTokens:  maxTokens,
		usage:      make(map[Phase]int),
		compressor: compressor,
		logger:     logger,
	}
}

// EstimateTokens applies the bytes/4 estimation heuristic. Non-string
// content is stringified first, matching TokenCounter.estimate_tokens's
// handling of dict/list inputs.
func EstimateTokens(content any) int {
	s := stringify(content)
	return len(s) / 4
}

func stringify(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// BudgetFor returns the configured budget for a phase, defaulting to
// 1000 tokens for unrecognized phases.
func (a *Accountant) BudgetFor(phase Phase) int {
	if b, ok := defaultBudgets[phase]; ok {
		return b
	}
	return defaultPhaseBudget
}

// Track records content against a phase's usage and returns whether the
// phase is within its budget. Logs a warning when the phase goes over
// budget, matching TokenCounter.track_phase.
func (a *Accountant) Track(phase Phase, content any) TrackResult {
	tok := EstimateTokens(content)

	a.mu.Lock()
	a.usage[phase] += tok
	used := a.usage[phase]
	a.total = 0
	for _, v := range a.usage {
		a.total += v
	}
	total := a.total
	a.mu.Unlock()

	budget := a.BudgetFor(phase)
	within := used <= budget
	if !within {
		a.logger.Warn("phase token budget exceeded", "phase", phase, "used", used, "budget", budget)
	}

	return TrackResult{
		Tokens:       tok,
		Phase:        phase,
		WithinBudget: within,
		Remaining:    a.maxTokens - total,
		UsagePercent: 100 * float64(total) / float64(a.maxTokens),
	}
}

// CheckBudget reports whether adding additionalTokens would keep total
// usage within the accountant's overall maximum.
func (a *Accountant) CheckBudget(additionalTokens int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total+additionalTokens <= a.maxTokens
}

// CompressIfNeeded compresses content for phase only when its estimated
// size exceeds the phase's budget; otherwise it is returned unchanged.
// logged reduction percentage mirrors TokenCounter.compress_if_needed.
func (a *Accountant) CompressIfNeeded(phase Phase, context map[string]any) map[string]any {
	budget := a.BudgetFor(phase)
	before := EstimateTokens(context)
	if before <= budget {
		return context
	}
	compressed := a.compressor.CompressContext(context, budget)
	after := EstimateTokens(compressed)
	if before > 0 {
		reduction := 100 * float64(before-after) / float64(before)
		a.logger.Info("compressed phase content", "phase", phase, "before_tokens", before, "after_tokens", after, "reduction_pct", reduction)
	}
	return compressed
}

// Reset clears all tracked usage.
func (a *Accountant) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.usage = make(map[Phase]int)
	a.total = 0
}

// UsageReport renders a short human-readable usage summary, supplementing
// C2 with the report format original_source's get_usage_report produces.
func (a *Accountant) UsageReport() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	report := fmt.Sprintf("token usage: %d/%d total\n", a.total, a.maxTokens)
	for phase, used := range a.usage {
		report += fmt.Sprintf("  %-20s %d/%d\n", phase, used, a.BudgetFor(phase))
	}
	return report
}
