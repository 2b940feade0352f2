package toolrouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/ratelimit"
)

func TestDispatchUnknownTool(t *testing.T) {
	r := New(nil, nil)
	result := r.Dispatch(context.Background(), core.ToolCall{Name: "does_not_exist"})
	if result.Success || result.Error != "unknown_tool" {
		t.Fatalf("expected unknown_tool error, got %+v", result)
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := New(nil, nil)
	r.Register(Spec{
		Name: "echo",
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult {
			return core.ToolResult{Success: true, Fields: params}
		},
	})

	result := r.Dispatch(context.Background(), core.ToolCall{Name: "echo", Params: map[string]any{"x": 1}})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	r := New(nil, nil)
	r.Register(Spec{
		Name: "boom",
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult {
			panic("kaboom")
		},
	})

	result := r.Dispatch(context.Background(), core.ToolCall{Name: "boom"})
	if result.Success || result.Error != "handler crashed" {
		t.Fatalf("expected recovered panic result, got %+v", result)
	}
}

func TestDispatchResourceCheckBlocks(t *testing.T) {
	r := New(func() error { return errors.New("cpu over limit") }, nil)
	r.Register(Spec{
		Name:    "noop",
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult { return core.ToolResult{Success: true} },
	})

	result := r.Dispatch(context.Background(), core.ToolCall{Name: "noop"})
	if result.Success {
		t.Fatal("expected resource check to block dispatch")
	}
}

func TestDispatchRateLimit(t *testing.T) {
	r := New(nil, nil)
	r.Register(Spec{
		Name:      "limited",
		Handler:   func(ctx context.Context, params map[string]any) core.ToolResult { return core.ToolResult{Success: true} },
		RateLimit: ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1, Enabled: true},
	})

	first := r.Dispatch(context.Background(), core.ToolCall{Name: "limited"})
	if !first.Success {
		t.Fatalf("expected first call to succeed, got %+v", first)
	}
	second := r.Dispatch(context.Background(), core.ToolCall{Name: "limited"})
	if second.Success || second.Error != "rate_limit" {
		t.Fatalf("expected second call to be rate limited, got %+v", second)
	}
}

func TestDispatchTimeout(t *testing.T) {
	r := New(nil, nil)
	r.Register(Spec{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult {
			<-ctx.Done()
			return core.ToolResult{Success: true}
		},
	})

	result := r.Dispatch(context.Background(), core.ToolCall{Name: "slow"})
	if result.Success || result.Error != "timeout" {
		t.Fatalf("expected timeout error, got %+v", result)
	}
}
