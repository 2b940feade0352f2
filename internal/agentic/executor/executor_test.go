package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/events"
	"github.com/haasonsaas/nexus/internal/agentic/modelmanager"
	"github.com/haasonsaas/nexus/internal/agentic/parser"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
	"github.com/haasonsaas/nexus/internal/backend"
)

// newFakeBackend stands in for the local inference server, handling
// both the non-streaming /api/generate contract the single-phase
// executor and warm-up calls use, and the streaming NDJSON contract the
// two-phase planning phase uses. responses maps a prompt fragment to the
// text that should come back; the longest matching fragment wins.
func newFakeBackend(t *testing.T, responses map[string]string) *backend.Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		text := ""
		if req.Prompt != "" {
			for fragment, reply := range responses {
				if strings.Contains(req.Prompt, fragment) {
					text = reply
					break
				}
			}
		}

		if !req.Stream {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": text, "done": true})
			return
		}

		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)
		if text != "" {
			_ = enc.Encode(map[string]any{"response": text, "done": false})
			if flusher != nil {
				flusher.Flush()
			}
		}
		_ = enc.Encode(map[string]any{"response": "", "done": true})
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse fake backend url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse fake backend port: %v", err)
	}
	return backend.New(backend.Config{Host: u.Hostname(), Port: port})
}

func newEchoRegistry() *toolrouter.Registry {
	reg := toolrouter.New(nil, nil)
	reg.Register(toolrouter.Spec{
		Name: "write_file",
		Handler: func(_ context.Context, params map[string]any) core.ToolResult {
			return core.ToolResult{Success: true, Fields: params}
		},
		SideEffect: toolrouter.SideEffectWrite,
	})
	return reg
}

func TestSinglePhaseRunDispatchesToolCall(t *testing.T) {
	client := newFakeBackend(t, map[string]string{
		"do it": `TOOL: write_file | PARAMS: {"path": "a.txt", "content": "hi"}`,
	})
	mm := modelmanager.New(client, modelmanager.Config{})
	reg := newEchoRegistry()
	bus := events.New(nil)

	exec := New(mm, reg, parser.New(nil), bus, backend.Options{})
	result := exec.Run(context.Background(), "qwen-exec", "", "do it")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
	}
	if result.ToolCalls[0].Name != "write_file" {
		t.Fatalf("expected write_file, got %q", result.ToolCalls[0].Name)
	}
}

func TestSinglePhaseRunWithoutToolCallReturnsProse(t *testing.T) {
	client := newFakeBackend(t, map[string]string{
		"explain": "this is a plain answer",
	})
	mm := modelmanager.New(client, modelmanager.Config{})
	reg := newEchoRegistry()
	bus := events.New(nil)

	exec := New(mm, reg, parser.New(nil), bus, backend.Options{})
	result := exec.Run(context.Background(), "qwen-exec", "", "explain this")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Response != "this is a plain answer" {
		t.Fatalf("unexpected response: %q", result.Response)
	}
	if len(result.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls, got %d", len(result.ToolCalls))
	}
}

func TestTwoPhaseRunPlansThenExecutes(t *testing.T) {
	client := newFakeBackend(t, map[string]string{
		"implementation plan": "Step 1: create a.txt\nStep 2: write hello",
		"Plan to implement":   `TOOL: write_file | PARAMS: {"path": "a.txt", "content": "hello"}`,
	})
	mm := modelmanager.New(client, modelmanager.Config{})
	reg := newEchoRegistry()
	bus := events.New(nil)

	tp := NewTwoPhase(mm, reg, parser.New(nil), bus, TwoPhaseTimeouts{})
	result := tp.Run(context.Background(), "qwen-reasoning", "qwen-exec", "build something")

	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if !result.Success {
		t.Fatalf("expected success")
	}
	if !strings.Contains(result.Plan, "Step 1") {
		t.Fatalf("expected plan text to be captured, got %q", result.Plan)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "write_file" {
		t.Fatalf("expected 1 write_file tool call, got %+v", result.ToolCalls)
	}
}
