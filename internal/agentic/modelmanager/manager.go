// Package modelmanager implements the Model Manager: the single-writer
// owner of VramState, responsible for ensuring a model is resident in
// the backend's GPU memory before it is called. Grounded on
// original_source/tools/model_manager.py's SmartModelManager.
package modelmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/backend"
)

// Config configures a Manager.
type Config struct {
	KeepAlive  time.Duration // default: 60m, matching model_manager.py's default keep_alive
	WarmupWait time.Duration // timeout for the warm-up call, default 30s
}

// CallResult is returned by Call.
type CallResult struct {
	Success bool
	Text    string
	Model   core.ModelID
	Error   string
}

// Manager owns VramState and serializes every residency change behind
// its mutex: across concurrent Requests, the second caller needing a
// different model waits for the first swap to finish (spec §5).
type Manager struct {
	mu     sync.Mutex
	client *backend.Client
	state  core.VramState
	cfg    Config
}

// New creates a Manager.
func New(client *backend.Client, cfg Config) *Manager {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Minute
	}
	if cfg.WarmupWait <= 0 {
		cfg.WarmupWait = 30 * time.Second
	}
	return &Manager{
		client: client,
		cfg:    cfg,
		state:  core.VramState{KeepAlive: cfg.KeepAlive},
	}
}

// EnsureResident makes id the backend's resident model, issuing a warm
// call (empty prompt, zero predicted tokens) only when it is not
// already resident. Returns the elapsed swap time (0 when no swap was
// needed).
func (m *Manager) EnsureResident(ctx context.Context, id core.ModelID) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Resident == id {
		return 0, nil
	}

	warmCtx, cancel := context.WithTimeout(ctx, m.cfg.WarmupWait)
	defer cancel()

	start := time.Now()
	_, err := m.client.Generate(warmCtx, string(id), "", m.cfg.KeepAlive, backend.Options{NumPredict: 0})
	if err != nil {
		return 0, fmt.Errorf("warm model %s: %w", id, err)
	}
	elapsed := time.Since(start)

	m.state.Resident = id
	m.state.SwapCount++
	m.state.TotalSwapSeconds += elapsed.Seconds()

	return elapsed, nil
}

// Call ensures id is resident then issues a generate call with it.
func (m *Manager) Call(ctx context.Context, id core.ModelID, prompt string, opts backend.Options) CallResult {
	if _, err := m.EnsureResident(ctx, id); err != nil {
		return CallResult{Model: id, Error: err.Error()}
	}

	text, err := m.client.Generate(ctx, string(id), prompt, m.cfg.KeepAlive, opts)
	if err != nil {
		return CallResult{Model: id, Error: err.Error()}
	}
	return CallResult{Success: true, Text: text, Model: id}
}

// BackendClient exposes the underlying backend client for callers that
// need direct access to streaming (e.g. the Two-Phase Executor's
// planning phase), bypassing the single-shot Call wrapper.
func (m *Manager) BackendClient() *backend.Client {
	return m.client
}

// Status returns a copy of the current VramState.
func (m *Manager) Status() core.VramState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Report renders a human-readable swap statistics summary, supplemented
// from model_manager.py's get_swap_report.
func (m *Manager) Report() string {
	s := m.Status()
	avg := 0.0
	if s.SwapCount > 0 {
		avg = s.TotalSwapSeconds / float64(s.SwapCount)
	}
	return fmt.Sprintf(
		"resident model: %s\nkeep_alive: %s\nswap count: %d\ntotal swap time: %.2fs\naverage swap time: %.2fs\n",
		s.Resident, s.KeepAlive, s.SwapCount, s.TotalSwapSeconds, avg,
	)
}
