package recovery

import "testing"

func TestClassifySyntaxError(t *testing.T) {
	c := New()
	result := c.Classify("SyntaxError: invalid syntax", "SyntaxError")
	if result.Kind != KindSyntaxError {
		t.Fatalf("expected syntax_error, got %s", result.Kind)
	}
	if !result.Recoverable || result.Strategy != StrategyReprompt {
		t.Fatalf("unexpected classification: %+v", result)
	}
}

func TestClassifyPermissionDeniedIsNotRecoverable(t *testing.T) {
	c := New()
	result := c.Classify("PermissionError: access denied", "PermissionError")
	if result.Recoverable {
		t.Fatal("expected permission_denied to be non-recoverable")
	}
	if result.Strategy != StrategyEscalate {
		t.Fatalf("expected escalate strategy, got %s", result.Strategy)
	}
}

func TestClassifyModelErrorIsRecoverablePerSpec(t *testing.T) {
	// Spec's literal table marks model_error recoverable=true despite
	// high severity, diverging from the Python original's blanket
	// high-severity-implies-not-recoverable rule.
	c := New()
	result := c.Classify("Ollama returned an error", "")
	if result.Kind != KindModelError {
		t.Fatalf("expected model_error, got %s", result.Kind)
	}
	if !result.Recoverable {
		t.Fatal("expected model_error to be recoverable per SPEC_FULL.md's table")
	}
}

func TestClassifyNetworkErrorIsRecoverablePerSpec(t *testing.T) {
	c := New()
	result := c.Classify("ConnectionError: unreachable", "")
	if result.Kind != KindNetworkError || !result.Recoverable {
		t.Fatalf("expected recoverable network_error, got %+v", result)
	}
}

func TestClassifyUnknownFallsBackToEscalate(t *testing.T) {
	c := New()
	result := c.Classify("something completely unrecognized happened", "")
	if result.Kind != KindUnknown || result.Recoverable || result.Strategy != StrategyEscalate {
		t.Fatalf("unexpected fallback classification: %+v", result)
	}
}

func TestClassifyTruncatesLongMessages(t *testing.T) {
	c := New()
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	result := c.Classify(string(long), "")
	if len(result.OriginalErrMsg) != 200 {
		t.Fatalf("expected truncation to 200 chars, got %d", len(result.OriginalErrMsg))
	}
}
