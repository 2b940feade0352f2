// Package sessionhistory maintains an in-memory, per-session message log
// used by the Orchestrator to build prompt context across turns.
// Grounded on original_source/tools/session_history.py's SessionHistory,
// with the pruning rule resolved per SPEC_FULL.md §9: the active session
// is never pruned; only other sessions' oldest messages are dropped,
// oldest-session-first, until the global message budget is met.
package sessionhistory

import (
	"strings"
	"sync"
	"time"
)

// Message is one role/content turn recorded against a session.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

type session struct {
	id       string
	messages []Message
}

// History is a bounded, multi-session message log.
type History struct {
	mu          sync.Mutex
	maxMessages int
	sessions    []*session
}

// New creates a History capped at maxMessages total messages across all
// sessions (the active session is exempt from that cap).
func New(maxMessages int) *History {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &History{maxMessages: maxMessages}
}

// Add appends a message to sessionID's log, then prunes other sessions'
// oldest messages (oldest session first) until the total is within
// budget or only the active session remains.
func (h *History) Add(sessionID, role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.find(sessionID)
	if s == nil {
		s = &session{id: sessionID}
		h.sessions = append(h.sessions, s)
	}
	s.messages = append(s.messages, Message{Role: role, Content: content, Timestamp: time.Now()})

	h.prune(sessionID)
}

func (h *History) find(sessionID string) *session {
	for _, s := range h.sessions {
		if s.id == sessionID {
			return s
		}
	}
	return nil
}

// prune drops oldest sessions other than active, oldest-first, until
// the total message count is within budget or only active remains. If
// active alone exceeds the budget, it is left over-budget rather than
// truncated — this repo never truncates the session being actively used.
func (h *History) prune(active string) {
	total := h.totalMessages()
	for total > h.maxMessages && h.otherSessionCount(active) > 0 {
		idx := h.oldestOtherIndex(active)
		if idx < 0 {
			break
		}
		removed := h.sessions[idx]
		h.sessions = append(h.sessions[:idx], h.sessions[idx+1:]...)
		total -= len(removed.messages)
	}
}

func (h *History) totalMessages() int {
	n := 0
	for _, s := range h.sessions {
		n += len(s.messages)
	}
	return n
}

func (h *History) otherSessionCount(active string) int {
	n := 0
	for _, s := range h.sessions {
		if s.id != active {
			n++
		}
	}
	return n
}

func (h *History) oldestOtherIndex(active string) int {
	for i, s := range h.sessions {
		if s.id != active {
			return i
		}
	}
	return -1
}

// Recent returns the last n messages of sessionID, oldest first.
func (h *History) Recent(sessionID string, n int) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.find(sessionID)
	if s == nil {
		return nil
	}
	if n <= 0 || n >= len(s.messages) {
		out := make([]Message, len(s.messages))
		copy(out, s.messages)
		return out
	}
	out := make([]Message, n)
	copy(out, s.messages[len(s.messages)-n:])
	return out
}

// ContextForLLM formats the last n messages of sessionID as a prompt
// preamble, truncating each message to 500 characters, matching
// get_context_for_llm.
func (h *History) ContextForLLM(sessionID string, n int) string {
	recent := h.Recent(sessionID, n)
	if len(recent) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent conversation history:\n")
	for i, m := range recent {
		content := m.Content
		if len(content) > 500 {
			content = content[:500]
		}
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString(": ")
		sb.WriteString(content)
		if i < len(recent)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
