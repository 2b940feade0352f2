// Package events implements the agent runtime's Event Bus: synchronous,
// in-process pub/sub with a bounded history ring buffer. It plays the
// same role internal/agent/event_sink.go's sinks play for the chat
// agent, adapted to the simpler synchronous-delivery contract this
// runtime's executors require (see original_source/tools/event_bus.py).
package events

import (
	"log/slog"
	"sync"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

// MaxHistory bounds the retained event ring buffer.
const MaxHistory = 1000

// Handler receives published events. Handlers must not call Publish
// recursively and must not block for long; panics are recovered by the
// bus and logged without affecting other subscribers.
type Handler func(core.Event)

// Filter selects a subset of History. A nil Filter matches everything.
type Filter func(core.Event) bool

// Bus is a process-wide synchronous publish/subscribe broadcaster with a
// bounded retained history.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]Handler
	nextID      int
	history     []core.Event
	logger      *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[int]Handler),
		logger:      logger,
	}
}

// Subscribe registers a handler and returns a token for Unsubscribe.
func (b *Bus) Subscribe(h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = h
	return id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, token)
}

// Publish appends the event to history (evicting the oldest entry once
// MaxHistory is exceeded) and invokes every subscriber synchronously, in
// registration order. Publish never returns an error: a panicking
// handler is recovered and logged, and the remaining subscribers still
// run.
func (b *Bus) Publish(e core.Event) {
	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > MaxHistory {
		b.history = b.history[len(b.history)-MaxHistory:]
	}
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(h, e)
	}
}

func (b *Bus) dispatch(h Handler, e core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "panic", r, "event_type", e.Type)
		}
	}()
	h(e)
}

// History returns the retained events matching filter, in publish order.
// A nil filter returns the full retained history (at most MaxHistory
// entries).
func (b *Bus) History(filter Filter) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if filter == nil {
		out := make([]core.Event, len(b.history))
		copy(out, b.history)
		return out
	}

	out := make([]core.Event, 0, len(b.history))
	for _, e := range b.history {
		if filter(e) {
			out = append(out, e)
		}
	}
	return out
}

// ClearHistory discards all retained events. Subscribers are unaffected.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// ByType returns a Filter that matches a single event type.
func ByType(t core.EventType) Filter {
	return func(e core.Event) bool { return e.Type == t }
}
