// Package analyzer implements the Adaptive Analyzer (C14): read-only
// queries over the Execution History Store that surface routing
// performance patterns, misroutes, model recommendations, and error
// insights for continuous self-improvement. Grounded on
// original_source/tools/adaptive_analyzer.py's AdaptiveAnalyzer.
package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/history"
	"github.com/haasonsaas/nexus/internal/agentic/recovery"
)

// Analyzer queries a history.Store for adaptive-learning signals. It
// never writes: the Orchestrator is the only component that writes to
// the history store.
type Analyzer struct {
	history    *history.Store
	classifier *recovery.Classifier
}

// New creates an Analyzer bound to store.
func New(store *history.Store) *Analyzer {
	return &Analyzer{history: store, classifier: recovery.New()}
}

// RoutingPerformance is the result of analyzing past routing decisions.
type RoutingPerformance struct {
	Overall         history.Summary
	ByGroup         []history.RoutingStatsGroup
	BestPerforming  []Pattern
	WorstPerforming []Pattern
	Recommendations []string
}

// Pattern is one (mode, tier) combination flagged as notably good or bad.
type Pattern struct {
	Mode        string
	Tier        string
	SuccessRate float64
	Count       int
}

// AnalyzeRoutingPerformance mirrors analyze_routing_performance: overall
// stats, grouped stats, and best/worst patterns with recommendations.
func (a *Analyzer) AnalyzeRoutingPerformance(ctx context.Context) (RoutingPerformance, error) {
	overall, err := a.history.Summary(ctx)
	if err != nil {
		return RoutingPerformance{}, fmt.Errorf("analyzer: summary: %w", err)
	}

	groups, err := a.history.RoutingStats(ctx)
	if err != nil {
		return RoutingPerformance{}, fmt.Errorf("analyzer: routing stats: %w", err)
	}

	best, worst := identifyPatterns(groups)
	recs := recommendations(best, worst)

	return RoutingPerformance{
		Overall:         overall,
		ByGroup:         groups,
		BestPerforming:  best,
		WorstPerforming: worst,
		Recommendations: recs,
	}, nil
}

// identifyPatterns finds best performers (>80% success, ≥5 samples, top 3)
// and worst performers (<50% success, ≥3 samples, top 3), matching
// _identify_patterns.
func identifyPatterns(groups []history.RoutingStatsGroup) (best, worst []Pattern) {
	sorted := make([]history.RoutingStatsGroup, len(groups))
	copy(sorted, groups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SuccessRate > sorted[j].SuccessRate })

	for _, g := range sorted {
		if g.SuccessRate > 0.8 && g.Count >= 5 && len(best) < 3 {
			best = append(best, Pattern{Mode: g.Mode, Tier: g.Tier, SuccessRate: g.SuccessRate, Count: g.Count})
		}
	}
	for _, g := range sorted {
		if g.SuccessRate < 0.5 && g.Count >= 3 && len(worst) < 3 {
			worst = append(worst, Pattern{Mode: g.Mode, Tier: g.Tier, SuccessRate: g.SuccessRate, Count: g.Count})
		}
	}
	return best, worst
}

func recommendations(best, worst []Pattern) []string {
	var out []string
	for _, w := range worst {
		out = append(out, fmt.Sprintf("Consider alternative routing for %s tasks in %s (only %.0f%% success rate)",
			w.Tier, w.Mode, w.SuccessRate*100))
	}
	for _, b := range best {
		out = append(out, fmt.Sprintf("Continue using %s for %s tasks (%.0f%% success rate)",
			b.Mode, b.Tier, b.SuccessRate*100))
	}
	return out
}

// Misroute is a detected misroute with its recommended alternative.
type Misroute struct {
	history.Misroute
	Recommendation string
}

// DetectMisroutes finds (tier, multi_file, mode) combinations whose
// success rate fell below threshold with at least minSamples
// observations, matching detect_misroutes.
func (a *Analyzer) DetectMisroutes(ctx context.Context, threshold float64, minSamples int) ([]Misroute, error) {
	raw, err := a.history.Misroutes(ctx, threshold, minSamples)
	if err != nil {
		return nil, fmt.Errorf("analyzer: misroutes: %w", err)
	}

	out := make([]Misroute, len(raw))
	for i, m := range raw {
		out[i] = Misroute{Misroute: m, Recommendation: recommendAlternative(m)}
	}
	return out, nil
}

func recommendAlternative(m history.Misroute) string {
	if m.Mode == string(core.RouteSingle) {
		return fmt.Sprintf("Try two-phase execution for %s tasks (currently %.0f%% with single-phase)", m.Tier, m.SuccessRate*100)
	}
	return fmt.Sprintf("Try single-phase execution for %s tasks (currently %.0f%% with two-phase)", m.Tier, m.SuccessRate*100)
}

// ModelRecommendation is the result of RecommendModelForTask.
type ModelRecommendation struct {
	RecommendedMode    core.Route
	RecommendedModel   string
	Confidence         float64
	Reasoning          string
	HistoricalSuccess  float64
	HasHistoricalData  bool
}

// RecommendModelForTask recommends an execution mode/model for a
// classification, preferring historical routing stats for the same tier
// when at least 3 samples exist, falling back to the spec's
// complex+creative+multi-file heuristic otherwise.
func (a *Analyzer) RecommendModelForTask(ctx context.Context, c core.Classification) (ModelRecommendation, error) {
	groups, err := a.history.RoutingStats(ctx)
	if err != nil {
		return ModelRecommendation{}, fmt.Errorf("analyzer: routing stats: %w", err)
	}

	var bestMode string
	var bestRate float64
	for _, g := range groups {
		if g.Tier == string(c.Tier) && g.Count >= 3 && g.SuccessRate > bestRate {
			bestMode, bestRate = g.Mode, g.SuccessRate
		}
	}

	if bestMode != "" {
		confidence := bestRate
		if confidence > 0.9 {
			confidence = 0.9
		}
		return ModelRecommendation{
			RecommendedMode:   core.Route(bestMode),
			RecommendedModel:  modelForMode(core.Route(bestMode)),
			Confidence:        confidence,
			Reasoning:         fmt.Sprintf("Based on %s tasks in history, %s has %.0f%% success rate", c.Tier, bestMode, bestRate*100),
			HistoricalSuccess: bestRate,
			HasHistoricalData: true,
		}, nil
	}

	if c.Tier == core.TierComplex && c.Characteristics.Creative && c.Characteristics.MultiFile {
		return ModelRecommendation{
			RecommendedMode:   core.RouteTwoPhase,
			RecommendedModel:  modelForMode(core.RouteTwoPhase),
			Confidence:        0.6,
			Reasoning:         "Complex creative multi-file task - two-phase recommended (no historical data)",
			HasHistoricalData: false,
		}, nil
	}

	return ModelRecommendation{
		RecommendedMode:   core.RouteSingle,
		RecommendedModel:  modelForMode(core.RouteSingle),
		Confidence:        0.7,
		Reasoning:         "Simple task - single-phase recommended (no historical data)",
		HasHistoricalData: false,
	}, nil
}

func modelForMode(mode core.Route) string {
	if mode == core.RouteTwoPhase {
		return "openthinker3-7b + qwen2.5-coder:7b"
	}
	return "qwen2.5-coder:7b"
}

// ErrorInsights summarizes recent error patterns.
type ErrorInsights struct {
	TotalErrors        int
	RecoverableCount   int
	MostCommonErrors   []ErrorCount
	RecoveryCandidates []history.Row
}

// ErrorCount is one (kind, count) pair.
type ErrorCount struct {
	Kind  recovery.Kind
	Count int
}

// GetErrorInsights classifies the last `limit` failed executions and
// reports the most common error kinds plus which ones are recoverable
// (and therefore good candidates for automated recovery), matching
// get_error_insights.
func (a *Analyzer) GetErrorInsights(ctx context.Context, limit int) (ErrorInsights, error) {
	rows, err := a.history.Errors(ctx, limit)
	if err != nil {
		return ErrorInsights{}, fmt.Errorf("analyzer: errors: %w", err)
	}
	if len(rows) == 0 {
		return ErrorInsights{}, nil
	}

	counts := make(map[recovery.Kind]int)
	var candidates []history.Row
	for _, r := range rows {
		c := a.classifier.Classify(r.ErrorMessage, r.ErrorKind)
		counts[c.Kind]++
		if c.Recoverable {
			candidates = append(candidates, r)
		}
	}

	var mostCommon []ErrorCount
	for kind, n := range counts {
		mostCommon = append(mostCommon, ErrorCount{Kind: kind, Count: n})
	}
	sort.Slice(mostCommon, func(i, j int) bool { return mostCommon[i].Count > mostCommon[j].Count })
	if len(mostCommon) > 5 {
		mostCommon = mostCommon[:5]
	}

	return ErrorInsights{
		TotalErrors:        len(rows),
		RecoverableCount:   len(candidates),
		MostCommonErrors:   mostCommon,
		RecoveryCandidates: candidates,
	}, nil
}

// ThresholdSuggestion is a suggested adjustment to the two-phase routing
// threshold.
type ThresholdSuggestion struct {
	Type            string
	Reason          string
	SuggestedAction string
	Confidence      float64
}

// SuggestThresholdAdjustments compares aggregate single-phase vs
// two-phase success rates and, when one mode outperforms the other by
// more than 20 points with at least 5 samples each, suggests shifting
// the routing threshold, matching suggest_threshold_adjustments.
func (a *Analyzer) SuggestThresholdAdjustments(ctx context.Context) ([]ThresholdSuggestion, error) {
	groups, err := a.history.RoutingStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyzer: routing stats: %w", err)
	}

	var singleSuccesses, singleTotal, twoSuccesses, twoTotal float64
	for _, g := range groups {
		switch core.Route(g.Mode) {
		case core.RouteSingle:
			singleSuccesses += float64(g.Count) * g.SuccessRate
			singleTotal += float64(g.Count)
		case core.RouteTwoPhase:
			twoSuccesses += float64(g.Count) * g.SuccessRate
			twoTotal += float64(g.Count)
		}
	}

	if twoTotal < 5 || singleTotal < 5 {
		return nil, nil
	}

	twoRate := twoSuccesses / twoTotal
	singleRate := singleSuccesses / singleTotal

	switch {
	case twoRate > singleRate+0.2:
		return []ThresholdSuggestion{{
			Type:            "increase_two_phase_usage",
			Reason:          fmt.Sprintf("Two-phase has %.0f%% success vs single-phase %.0f%%", twoRate*100, singleRate*100),
			SuggestedAction: "Lower complexity threshold for two-phase routing",
			Confidence:      0.7,
		}}, nil
	case singleRate > twoRate+0.2:
		return []ThresholdSuggestion{{
			Type:            "decrease_two_phase_usage",
			Reason:          fmt.Sprintf("Single-phase has %.0f%% success vs two-phase %.0f%%", singleRate*100, twoRate*100),
			SuggestedAction: "Raise complexity threshold for two-phase routing",
			Confidence:      0.7,
		}}, nil
	default:
		return nil, nil
	}
}
