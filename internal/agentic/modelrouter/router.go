// Package modelrouter implements the Model Router: translating a
// Classification into concrete model selection and the single/two-phase
// decision. Grounded on original_source/tools/model_router.py's
// ModelRouter.
package modelrouter

import (
	"github.com/haasonsaas/nexus/internal/agentic/core"
)

// ModelSet binds the three logical roles to concrete backend model IDs.
type ModelSet struct {
	ContextMaster core.ModelID
	Executor      core.ModelID
	Fixer         core.ModelID
}

// Decision is the Router's output for one Classification.
type Decision struct {
	UseTwoPhase    bool
	PrimaryModel   core.ModelID
	PlanningModel  core.ModelID
	ExecutionModel core.ModelID
}

// Router selects models and execution strategy for a Classification.
type Router struct {
	models ModelSet
}

// New creates a Router bound to a ModelSet.
func New(models ModelSet) *Router {
	return &Router{models: models}
}

// Route applies the rule from spec §4.6: two-phase iff tier=complex, or
// tier=standard with both creative and multi_file; otherwise
// single-phase with the executor model.
func (r *Router) Route(c core.Classification) Decision {
	useTwoPhase := c.Tier == core.TierComplex ||
		(c.Tier == core.TierStandard && c.Characteristics.Creative && c.Characteristics.MultiFile)

	if useTwoPhase {
		return Decision{
			UseTwoPhase:    true,
			PrimaryModel:   r.models.ContextMaster,
			PlanningModel:  r.models.ContextMaster,
			ExecutionModel: r.models.Executor,
		}
	}

	return Decision{
		UseTwoPhase:    false,
		PrimaryModel:   r.models.Executor,
		ExecutionModel: r.models.Executor,
	}
}

// SelectForFixer returns the model used for emergency/debugging retries.
func (r *Router) SelectForFixer() core.ModelID {
	return r.models.Fixer
}

// RoutingStatsReport summarizes routing decisions across a batch of
// classifications — supplemented from
// original_source/tools/model_router.py's get_routing_stats, layered on
// top of the Adaptive Analyzer's required history-backed statistics.
type RoutingStatsReport struct {
	Total              int
	SingleCount        int
	TwoPhaseCount      int
	TotalSwapSeconds   float64
	AverageSwapSeconds float64
}

// RoutingStats aggregates routing decisions across classifications,
// useful for offline analysis independent of execution history.
func (r *Router) RoutingStats(classifications []core.Classification) RoutingStatsReport {
	report := RoutingStatsReport{Total: len(classifications)}
	for _, c := range classifications {
		d := r.Route(c)
		if d.UseTwoPhase {
			report.TwoPhaseCount++
		} else {
			report.SingleCount++
		}
		report.TotalSwapSeconds += c.EstimatedSwapSeconds
	}
	if report.Total > 0 {
		report.AverageSwapSeconds = report.TotalSwapSeconds / float64(report.Total)
	}
	return report
}
