package events

import (
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

func TestBusPublishInvokesSubscribersInOrder(t *testing.T) {
	b := New(nil)
	var mu sync.Mutex
	var seen []string

	b.Subscribe(func(e core.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, "a:"+string(e.Type))
	})
	b.Subscribe(func(e core.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, "b:"+string(e.Type))
	})

	b.Publish(core.Event{Type: core.EventComplete, Time: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "a:complete" || seen[1] != "b:complete" {
		t.Fatalf("unexpected delivery order: %v", seen)
	}
}

func TestBusSubscriberPanicDoesNotStopOthers(t *testing.T) {
	b := New(nil)
	called := false

	b.Subscribe(func(core.Event) { panic("boom") })
	b.Subscribe(func(core.Event) { called = true })

	b.Publish(core.Event{Type: core.EventComplete})

	if !called {
		t.Fatal("second subscriber was not invoked after first panicked")
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	count := 0
	token := b.Subscribe(func(core.Event) { count++ })
	b.Publish(core.Event{Type: core.EventComplete})
	b.Unsubscribe(token)
	b.Publish(core.Event{Type: core.EventComplete})

	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}

func TestBusHistoryIsBoundedAndOrdered(t *testing.T) {
	b := New(nil)
	for i := 0; i < MaxHistory+100; i++ {
		b.Publish(core.Event{Type: core.EventThinking, Thinking: &core.ThinkingPayload{Chunk: string(rune('a' + i%26))}})
	}

	hist := b.History(nil)
	if len(hist) > MaxHistory {
		t.Fatalf("history exceeded bound: got %d, want <= %d", len(hist), MaxHistory)
	}
	if len(hist) != MaxHistory {
		t.Fatalf("expected history to saturate at %d entries, got %d", MaxHistory, len(hist))
	}
}

func TestBusHistoryFilter(t *testing.T) {
	b := New(nil)
	b.Publish(core.Event{Type: core.EventStatusChange})
	b.Publish(core.Event{Type: core.EventComplete})
	b.Publish(core.Event{Type: core.EventStatusChange})

	filtered := b.History(ByType(core.EventStatusChange))
	if len(filtered) != 2 {
		t.Fatalf("expected 2 status_change events, got %d", len(filtered))
	}
}
