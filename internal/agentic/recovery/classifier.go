// Package recovery implements the Error Classifier & Recovery (C15): an
// ordered pattern-table classifier plus the strategy handlers each error
// kind maps to. Grounded on
// original_source/tools/error_classifier.py's ErrorClassifier and
// original_source/tools/error_recovery.py's ErrorRecoveryExecutor, with
// the severity/recoverable/strategy table taken verbatim from
// SPEC_FULL.md §4.15 (which diverges from the original Python on
// model_error and network_error recoverability).
package recovery

import "regexp"

// Kind is the error taxonomy from spec §4.15/§7.
type Kind string

const (
	KindSyntaxError       Kind = "syntax_error"
	KindFileNotFound      Kind = "file_not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindTimeout           Kind = "timeout"
	KindRateLimit         Kind = "rate_limit"
	KindModelError        Kind = "model_error"
	KindJSONParseError    Kind = "json_parse_error"
	KindInvalidParams     Kind = "invalid_params"
	KindNetworkError      Kind = "network_error"
	KindUnknown           Kind = "unknown"
	KindClassificationErr Kind = "classification_failed"
	KindToolDispatchErr   Kind = "tool_dispatch_failed"
	KindPlanningPhaseErr  Kind = "planning_phase_failed"
)

// Severity is the classifier's severity rating for an error Kind.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Strategy names the recovery procedure associated with an error Kind.
type Strategy string

const (
	StrategyReprompt         Strategy = "reprompt_with_error"
	StrategyCreatePath       Strategy = "create_missing_path"
	StrategyEscalate         Strategy = "escalate"
	StrategyRetrySmallerScope Strategy = "retry_smaller_scope"
	StrategyExponentialBackoff Strategy = "exponential_backoff"
	StrategySwitchModel      Strategy = "switch_model"
	StrategyFixJSON          Strategy = "fix_json_format"
	StrategyRepromptSchema   Strategy = "reprompt_with_schema"
	StrategyRetryBackoff     Strategy = "retry_with_backoff"
)

// rule is one row of the ordered pattern table; the classifier tests
// patterns in table order and returns the first Kind whose pattern set
// matches.
type rule struct {
	kind        Kind
	patterns    []*regexp.Regexp
	severity    Severity
	recoverable bool
	strategy    Strategy
}

var table = []rule{
	{KindSyntaxError, compile(`SyntaxError`, `IndentationError`, `invalid syntax`), SeverityMedium, true, StrategyReprompt},
	{KindFileNotFound, compile(`FileNotFoundError`, `No such file`), SeverityMedium, true, StrategyCreatePath},
	{KindPermissionDenied, compile(`PermissionError`, `denied`), SeverityHigh, false, StrategyEscalate},
	{KindTimeout, compile(`TimeoutError`, `timed out`), SeverityMedium, true, StrategyRetrySmallerScope},
	{KindRateLimit, compile(`rate limit`, `429`), SeverityLow, true, StrategyExponentialBackoff},
	{KindModelError, compile(`model.*not found`, `Ollama.*error`), SeverityHigh, true, StrategySwitchModel},
	{KindJSONParseError, compile(`JSONDecodeError`, `Expecting value`), SeverityMedium, true, StrategyFixJSON},
	{KindInvalidParams, compile(`missing required parameter`, `KeyError`), SeverityMedium, true, StrategyRepromptSchema},
	{KindNetworkError, compile(`ConnectionError`, `unreachable`), SeverityHigh, true, StrategyRetryBackoff},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// Classification is the classifier's verdict for one error.
type Classification struct {
	Kind           Kind
	Severity       Severity
	Recoverable    bool
	Strategy       Strategy
	Confidence     float64
	OriginalErrMsg string
	ErrorType      string
}

// Classifier matches an error message (and optional exception-type hint)
// against the ordered pattern table.
type Classifier struct{}

// New creates a Classifier. It carries no state.
func New() *Classifier { return &Classifier{} }

// Classify returns the Classification for errMsg, optionally aided by
// errType (an exception/error type name, may be empty).
func (c *Classifier) Classify(errMsg, errType string) Classification {
	searchText := errType + " " + errMsg

	for _, r := range table {
		matchCount := 0
		for _, p := range r.patterns {
			if p.MatchString(searchText) {
				matchCount++
			}
		}
		if matchCount > 0 {
			return Classification{
				Kind:           r.kind,
				Severity:       r.severity,
				Recoverable:    r.recoverable,
				Strategy:       r.strategy,
				Confidence:     confidence(matchCount, errType, r.kind),
				OriginalErrMsg: truncate(errMsg, 200),
				ErrorType:      errType,
			}
		}
	}

	return Classification{
		Kind:           KindUnknown,
		Severity:       SeverityMedium,
		Recoverable:    false,
		Strategy:       StrategyEscalate,
		Confidence:     0.5,
		OriginalErrMsg: truncate(errMsg, 200),
		ErrorType:      errType,
	}
}

func confidence(matchCount int, errType string, kind Kind) float64 {
	conf := 0.7
	if errType != "" {
		conf += 0.2
	}
	if matchCount > 1 {
		conf += 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
