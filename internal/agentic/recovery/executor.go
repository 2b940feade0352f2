package recovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/backoff"
)

// RetryCallback re-invokes the original operation with an augmented
// prompt. Spec §7: each strategy invokes it at most once — a handler
// that calls it twice is a programming error. The RateLimit strategy is
// the sole exception: it may retry across its backoff schedule, but
// that resembles one logical retry_callback use per documented wait.
type RetryCallback func(ctx context.Context, prompt string) (result string, ok bool, err error)

// Outcome is what a recovery strategy returns.
type Outcome struct {
	Recovered    bool
	Result       string
	StrategyUsed Strategy
	Attempts     int
	Error        string
}

// Context carries the fields a recovery strategy needs from the failed
// operation: the original user message and the tool parameters (if the
// failure came from a tool dispatch).
type Context struct {
	UserMessage string
	ToolName    string
	ToolParams  map[string]any
	Workspace   string
}

// backoffWaits is the fixed exponential_backoff schedule from spec
// §4.15/§7: at most 4 waits regardless of max_retries.
var backoffWaits = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}

// Executor looks up the strategy for a classified error and invokes the
// matching handler. Grounded on error_recovery.py's ErrorRecoveryExecutor.
type Executor struct {
	classifier *Classifier
	maxRetries int

	mu      sync.Mutex
	history []HistoryEntry
}

// HistoryEntry records one recovery attempt for statistics.
type HistoryEntry struct {
	Kind      Kind
	Outcome   Outcome
	Timestamp time.Time
}

// NewExecutor creates an Executor. maxRetries bounds the exponential
// backoff strategy's wait count (default 3, per spec §7).
func NewExecutor(maxRetries int) *Executor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Executor{classifier: New(), maxRetries: maxRetries}
}

// AttemptRecovery classifies errMsg and dispatches to the matching
// strategy, or reports non-recoverable/no-strategy.
func (e *Executor) AttemptRecovery(ctx context.Context, errMsg, errType string, rc Context, retry RetryCallback) Outcome {
	classification := e.classifier.Classify(errMsg, errType)

	if !classification.Recoverable {
		return e.record(classification.Kind, Outcome{StrategyUsed: classification.Strategy, Error: "not_recoverable"})
	}

	var outcome Outcome
	switch classification.Strategy {
	case StrategyReprompt:
		outcome = e.syntaxErrorRecovery(ctx, classification, rc, retry)
	case StrategyCreatePath:
		outcome = e.pathErrorRecovery(ctx, rc, retry)
	case StrategyRetrySmallerScope:
		outcome = e.timeoutRecovery(ctx, rc, retry)
	case StrategyExponentialBackoff:
		outcome = e.rateLimitRecovery(ctx, rc, retry)
	case StrategyFixJSON:
		outcome = e.jsonParseRecovery(ctx, classification, rc, retry)
	case StrategyRepromptSchema:
		outcome = e.invalidParamsRecovery(ctx, classification, rc, retry)
	default:
		// switch_model, retry_with_backoff, escalate: no automatic
		// handler in this runtime; the caller escalates (e.g. to the
		// fixer model via Progressive Retry).
		outcome = Outcome{StrategyUsed: classification.Strategy, Error: "no_strategy"}
	}

	return e.record(classification.Kind, outcome)
}

func (e *Executor) record(kind Kind, outcome Outcome) Outcome {
	e.mu.Lock()
	e.history = append(e.history, HistoryEntry{Kind: kind, Outcome: outcome, Timestamp: time.Now()})
	e.mu.Unlock()
	return outcome
}

func (e *Executor) syntaxErrorRecovery(ctx context.Context, c Classification, rc Context, retry RetryCallback) Outcome {
	content, _ := rc.ToolParams["content"].(string)
	prompt := fmt.Sprintf(`The previous code had a syntax error:

Error: %s

Original code that failed:
%s

Please fix the syntax error and provide corrected code.`, c.OriginalErrMsg, truncate(content, 500))

	return runOnce(ctx, StrategyReprompt, prompt, retry)
}

func (e *Executor) pathErrorRecovery(ctx context.Context, rc Context, retry RetryCallback) Outcome {
	path, _ := rc.ToolParams["path"].(string)
	if path == "" {
		return Outcome{StrategyUsed: StrategyCreatePath, Error: "no path in context"}
	}

	full := path
	if rc.Workspace != "" {
		full = filepath.Join(rc.Workspace, path)
	}
	parent := filepath.Dir(full)
	if _, err := os.Stat(parent); os.IsNotExist(err) {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return Outcome{StrategyUsed: StrategyCreatePath, Error: err.Error()}
		}
	}

	return runOnce(ctx, StrategyCreatePath, rc.UserMessage, retry)
}

func (e *Executor) timeoutRecovery(ctx context.Context, rc Context, retry RetryCallback) Outcome {
	prompt := fmt.Sprintf(`The previous request timed out. Let's simplify:

Original request: %s

Please complete this task with a simpler, more focused approach. Break into smaller steps if needed.`, rc.UserMessage)

	return runOnce(ctx, StrategyRetrySmallerScope, prompt, retry)
}

// rateLimitRecovery waits through the fixed [1,2,5,10]s schedule
// (capped at e.maxRetries waits), retrying after each wait.
func (e *Executor) rateLimitRecovery(ctx context.Context, rc Context, retry RetryCallback) Outcome {
	maxAttempts := len(backoffWaits)
	if e.maxRetries < maxAttempts {
		maxAttempts = e.maxRetries
	}

	var lastErr string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := backoff.SleepWithContext(ctx, backoffWaits[attempt]); err != nil {
			return Outcome{StrategyUsed: StrategyExponentialBackoff, Attempts: attempt, Error: err.Error()}
		}

		result, ok, err := retry(ctx, rc.UserMessage)
		if ok {
			return Outcome{Recovered: true, Result: result, StrategyUsed: StrategyExponentialBackoff, Attempts: attempt + 1}
		}
		if err != nil {
			lastErr = err.Error()
		}
	}

	return Outcome{StrategyUsed: StrategyExponentialBackoff, Attempts: maxAttempts, Error: lastErr}
}

func (e *Executor) jsonParseRecovery(ctx context.Context, c Classification, rc Context, retry RetryCallback) Outcome {
	prompt := fmt.Sprintf(`The previous response had invalid JSON:

Error: %s

Please provide valid JSON parameters in the correct format:
TOOL: tool_name | PARAMS: {"param": "value"}

Ensure:
- Use double quotes for strings
- Escape special characters
- Use \n for newlines, not literal newlines
- Valid JSON structure`, c.OriginalErrMsg)

	return runOnce(ctx, StrategyFixJSON, prompt, retry)
}

func (e *Executor) invalidParamsRecovery(ctx context.Context, c Classification, rc Context, retry RetryCallback) Outcome {
	prompt := fmt.Sprintf(`The previous tool call had invalid parameters:

Tool: %s
Error: %s

Please provide the correct parameters for this tool. Check the tool description for required parameters.`, rc.ToolName, c.OriginalErrMsg)

	return runOnce(ctx, StrategyRepromptSchema, prompt, retry)
}

func runOnce(ctx context.Context, strategy Strategy, prompt string, retry RetryCallback) Outcome {
	result, ok, err := retry(ctx, prompt)
	if err != nil {
		return Outcome{StrategyUsed: strategy, Attempts: 1, Error: err.Error()}
	}
	return Outcome{Recovered: ok, Result: result, StrategyUsed: strategy, Attempts: 1}
}

// Stats summarizes recovery attempts recorded so far.
type Stats struct {
	Total      int
	Successful int
	Failed     int
	SuccessRate float64
	ByType     map[Kind]TypeStats
}

// TypeStats is per-Kind recovery attempt/success counts.
type TypeStats struct {
	Attempts   int
	Successful int
}

// RecoveryStats reports aggregate statistics across recorded recovery
// attempts, matching error_recovery.py's get_recovery_stats.
func (e *Executor) RecoveryStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{ByType: make(map[Kind]TypeStats)}
	stats.Total = len(e.history)
	for _, h := range e.history {
		t := stats.ByType[h.Kind]
		t.Attempts++
		if h.Outcome.Recovered {
			t.Successful++
			stats.Successful++
		}
		stats.ByType[h.Kind] = t
	}
	stats.Failed = stats.Total - stats.Successful
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	}
	return stats
}
