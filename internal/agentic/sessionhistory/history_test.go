package sessionhistory

import (
	"strings"
	"testing"
)

func TestAddAndRecent(t *testing.T) {
	h := New(10)
	h.Add("s1", "user", "hello")
	h.Add("s1", "assistant", "hi there")

	recent := h.Recent("s1", 10)
	if len(recent) != 2 || recent[0].Content != "hello" || recent[1].Content != "hi there" {
		t.Fatalf("unexpected messages: %+v", recent)
	}
}

func TestRecentUnknownSessionReturnsNil(t *testing.T) {
	h := New(10)
	if recent := h.Recent("missing", 5); recent != nil {
		t.Fatalf("expected nil for unknown session, got %+v", recent)
	}
}

func TestPruneNeverTruncatesActiveSession(t *testing.T) {
	h := New(3)
	for i := 0; i < 5; i++ {
		h.Add("active", "user", "msg")
	}

	recent := h.Recent("active", 0)
	if len(recent) != 5 {
		t.Fatalf("expected the active session to keep all 5 messages despite the budget of 3, got %d", len(recent))
	}
}

func TestPruneDropsOldestOtherSessionsFirst(t *testing.T) {
	h := New(3)
	h.Add("old", "user", "a")
	h.Add("old", "user", "b")
	h.Add("newer", "user", "c")
	// Adding to "active" pushes total to 4, over budget of 3; "old" (2
	// messages, the oldest other session) is dropped entirely, leaving
	// "newer" and "active" within budget.
	h.Add("active", "user", "d")

	if recent := h.Recent("old", 0); recent != nil {
		t.Fatalf("expected the oldest other session to be dropped entirely, got %+v", recent)
	}
	if recent := h.Recent("newer", 0); len(recent) != 1 {
		t.Fatalf("expected the newer other session to survive, got %+v", recent)
	}
}

func TestContextForLLMFormatsAndTruncates(t *testing.T) {
	h := New(10)
	h.Add("s1", "user", "short message")

	ctx := h.ContextForLLM("s1", 5)
	if ctx == "" {
		t.Fatal("expected non-empty context")
	}
	if want := "USER: short message"; !strings.Contains(ctx, want) {
		t.Fatalf("expected context to contain %q, got %q", want, ctx)
	}
}

func TestContextForLLMEmptyWhenNoHistory(t *testing.T) {
	h := New(10)
	if ctx := h.ContextForLLM("nothing-yet", 5); ctx != "" {
		t.Fatalf("expected empty context for a session with no messages, got %q", ctx)
	}
}
