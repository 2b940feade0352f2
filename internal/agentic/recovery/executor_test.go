package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAttemptRecoverySyntaxErrorRepromptsOnce(t *testing.T) {
	e := NewExecutor(3)
	calls := 0
	outcome := e.AttemptRecovery(context.Background(), "SyntaxError: invalid syntax", "SyntaxError", Context{}, func(ctx context.Context, prompt string) (string, bool, error) {
		calls++
		return "fixed code", true, nil
	})

	if !outcome.Recovered || outcome.StrategyUsed != StrategyReprompt {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 retry invocation, got %d", calls)
	}
}

func TestAttemptRecoveryNotRecoverableSkipsRetry(t *testing.T) {
	e := NewExecutor(3)
	called := false
	outcome := e.AttemptRecovery(context.Background(), "PermissionError: denied", "PermissionError", Context{}, func(ctx context.Context, prompt string) (string, bool, error) {
		called = true
		return "", true, nil
	})

	if outcome.Recovered || called {
		t.Fatal("expected no retry for a non-recoverable error")
	}
	if outcome.Error != "not_recoverable" {
		t.Fatalf("unexpected error field: %s", outcome.Error)
	}
}

func TestPathErrorRecoveryCreatesMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(3)

	rc := Context{Workspace: dir, ToolParams: map[string]any{"path": "nested/deep/file.txt"}}
	outcome := e.AttemptRecovery(context.Background(), "FileNotFoundError: no such file", "FileNotFoundError", rc, func(ctx context.Context, prompt string) (string, bool, error) {
		return "created", true, nil
	})

	if !outcome.Recovered {
		t.Fatalf("expected recovery to succeed, got %+v", outcome)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", "deep")); err != nil {
		t.Fatalf("expected parent directory to be created: %v", err)
	}
}

func TestRateLimitRecoveryAbortsWhenContextExpiresDuringBackoff(t *testing.T) {
	e := NewExecutor(2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	called := false
	outcome := e.AttemptRecovery(ctx, "rate limit exceeded: 429", "", Context{}, func(ctx context.Context, prompt string) (string, bool, error) {
		called = true
		return "", true, nil
	})

	if outcome.Recovered || called {
		t.Fatalf("expected the expired context to abort the backoff wait before any retry, got %+v", outcome)
	}
	if outcome.StrategyUsed != StrategyExponentialBackoff {
		t.Fatalf("expected exponential_backoff strategy, got %s", outcome.StrategyUsed)
	}
}

func TestRecoveryStatsAggregatesByKind(t *testing.T) {
	e := NewExecutor(3)
	e.AttemptRecovery(context.Background(), "SyntaxError: invalid syntax", "SyntaxError", Context{}, func(ctx context.Context, prompt string) (string, bool, error) {
		return "ok", true, nil
	})
	e.AttemptRecovery(context.Background(), "SyntaxError: invalid syntax", "SyntaxError", Context{}, func(ctx context.Context, prompt string) (string, bool, error) {
		return "", false, nil
	})

	stats := e.RecoveryStats()
	if stats.Total != 2 || stats.Successful != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ByType[KindSyntaxError].Attempts != 2 {
		t.Fatalf("unexpected per-kind stats: %+v", stats.ByType[KindSyntaxError])
	}
}
