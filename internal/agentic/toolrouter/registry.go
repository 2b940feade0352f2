// Package toolrouter implements the Tool Registry & Router: a table of
// registered (name, schema, handler) triples and the dispatch pipeline
// spec §4.3 describes (rate limit, resource check, schema validation,
// timeout-bounded invocation, metrics). Grounded on
// internal/agent/tool_registry.go's ToolRegistry and
// internal/ratelimit.Bucket.
package toolrouter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/ratelimit"
)

// SideEffect classifies a tool's side effects.
type SideEffect string

const (
	SideEffectRead  SideEffect = "read"
	SideEffectWrite SideEffect = "write"
	SideEffectExec  SideEffect = "exec"
	SideEffectNet   SideEffect = "net"
)

// Handler executes a tool call and returns its result. Handlers must not
// panic; panics are recovered by Dispatch and converted to a failed
// ToolResult per spec §5.
type Handler func(ctx context.Context, params map[string]any) core.ToolResult

// Spec describes one registered tool.
type Spec struct {
	Name       string
	Schema     *jsonschema.Schema // nil disables parameter validation
	Handler    Handler
	SideEffect SideEffect
	RateLimit  ratelimit.Config
	Timeout    time.Duration // default 30s
}

// ResourceChecker reports whether the process currently has headroom to
// run another tool call. A nil checker always allows.
type ResourceChecker func() error

// Registry holds registered tools and dispatches validated calls.
type Registry struct {
	mu        sync.RWMutex
	specs     map[string]Spec
	buckets   map[string]*ratelimit.Bucket
	resources ResourceChecker
	metrics   *Metrics
}

// Metrics are the Prometheus collectors C3 records dispatch outcomes to.
type Metrics struct {
	Executions *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics registers the Tool Registry's Prometheus collectors against
// reg (pass prometheus.DefaultRegisterer for the global registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentic_tool_executions_total",
			Help: "Tool dispatch outcomes by tool name and status.",
		}, []string{"tool", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentic_tool_duration_seconds",
			Help:    "Tool execution duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),
	}
	reg.MustRegister(m.Executions, m.Duration)
	return m
}

// New creates an empty Registry.
func New(resources ResourceChecker, metrics *Metrics) *Registry {
	return &Registry{
		specs:     make(map[string]Spec),
		buckets:   make(map[string]*ratelimit.Bucket),
		resources: resources,
		metrics:   metrics,
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(spec Spec) {
	if spec.Timeout <= 0 {
		spec.Timeout = 30 * time.Second
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
	r.buckets[spec.Name] = ratelimit.NewBucket(spec.RateLimit)
}

// Get returns a registered Spec by name.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the registered tool names in sorted order, for building
// a tool-description preamble in a model prompt.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the full pipeline for a single tool call: rate limit,
// resource check, schema validation, timeout-bounded invocation with
// panic recovery, then metrics recording.
func (r *Registry) Dispatch(ctx context.Context, call core.ToolCall) core.ToolResult {
	start := time.Now()

	r.mu.RLock()
	spec, ok := r.specs[call.Name]
	bucket := r.buckets[call.Name]
	r.mu.RUnlock()

	if !ok {
		return r.finish(call.Name, start, core.ToolResult{Success: false, Error: "unknown_tool"})
	}

	if bucket != nil && !bucket.Allow() {
		return r.finish(call.Name, start, core.ToolResult{Success: false, Error: "rate_limit"})
	}

	if r.resources != nil {
		if err := r.resources(); err != nil {
			return r.finish(call.Name, start, core.ToolResult{Success: false, Error: fmt.Sprintf("resource_exhausted: %v", err)})
		}
	}

	if spec.Schema != nil {
		if err := validateParams(spec.Schema, call.Params); err != nil {
			return r.finish(call.Name, start, core.ToolResult{Success: false, Error: fmt.Sprintf("invalid_params: %v", err)})
		}
	}

	result := r.invoke(ctx, spec, call.Params)
	return r.finish(call.Name, start, result)
}

// invoke calls the handler under a timeout, recovering from panics per
// spec §5: a panicking handler becomes a failed ToolResult rather than
// propagating.
func (r *Registry) invoke(ctx context.Context, spec Spec, params map[string]any) (result core.ToolResult) {
	callCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	done := make(chan core.ToolResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- core.ToolResult{Success: false, Error: "handler crashed"}
			}
		}()
		done <- spec.Handler(callCtx, params)
	}()

	select {
	case result = <-done:
		return result
	case <-callCtx.Done():
		return core.ToolResult{Success: false, Error: "timeout"}
	}
}

func (r *Registry) finish(name string, start time.Time, result core.ToolResult) core.ToolResult {
	if r.metrics != nil {
		status := "success"
		if !result.Success {
			status = "error"
		}
		r.metrics.Executions.WithLabelValues(name, status).Inc()
		r.metrics.Duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return result
}

func validateParams(schema *jsonschema.Schema, params map[string]any) error {
	// jsonschema validates against any Go value matching the decoded
	// JSON shape; params is already that shape (map[string]any).
	return schema.Validate(toJSONValue(params))
}

func toJSONValue(params map[string]any) any {
	if params == nil {
		return map[string]any{}
	}
	return map[string]any(params)
}
