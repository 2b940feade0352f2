package history

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(tier core.Tier, mode core.Route, success bool, errorKind string) core.ExecutionRecord {
	return core.ExecutionRecord{
		ID:        "exec-1",
		Timestamp: time.Now(),
		Request:   "do something",
		Classification: core.Classification{
			Tier: tier,
			Characteristics: core.Characteristics{
				MultiFile: mode == core.RouteTwoPhase,
			},
		},
		Mode:      mode,
		Success:   success,
		Duration:  2 * time.Second,
		ErrorKind: errorKind,
		ToolCalls: []core.ToolCallOutcome{
			{Name: "write_file", Success: success, Duration: time.Second},
		},
	}
}

func TestLogExecutionAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.LogExecution(ctx, rec(core.TierStandard, core.RouteSingle, true, ""))
	if err != nil {
		t.Fatalf("LogExecution: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected a positive execution id, got %d", id)
	}

	rows, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 1 || rows[0].ToolCallCount != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestErrorsFiltersToFailedWithErrorKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LogExecution(ctx, rec(core.TierStandard, core.RouteSingle, true, "")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LogExecution(ctx, rec(core.TierStandard, core.RouteSingle, false, "model_error")); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Errors(ctx, 10)
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if len(rows) != 1 || rows[0].ErrorKind != "model_error" {
		t.Fatalf("unexpected error rows: %+v", rows)
	}
}

func TestRoutingStatsGroupsByModeAndTier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.LogExecution(ctx, rec(core.TierComplex, core.RouteTwoPhase, i != 0, "")); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := s.RoutingStats(ctx)
	if err != nil {
		t.Fatalf("RoutingStats: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected one (mode,tier) group, got %+v", groups)
	}
	g := groups[0]
	if g.Count != 3 || g.SuccessRate < 0.66 || g.SuccessRate > 0.67 {
		t.Fatalf("unexpected group stats: %+v", g)
	}
}

func TestMisroutesRequiresMinSamplesAndLowSuccessRate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.LogExecution(ctx, rec(core.TierComplex, core.RouteSingle, i == 0, "")); err != nil {
			t.Fatal(err)
		}
	}

	misroutes, err := s.Misroutes(ctx, 0.5, 3)
	if err != nil {
		t.Fatalf("Misroutes: %v", err)
	}
	if len(misroutes) != 1 {
		t.Fatalf("expected the low-success-rate group to be flagged, got %+v", misroutes)
	}
	if misroutes[0].Total != 5 || misroutes[0].Successes != 1 {
		t.Fatalf("unexpected misroute: %+v", misroutes[0])
	}
}

func TestSummaryAggregatesAcrossModes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LogExecution(ctx, rec(core.TierSimple, core.RouteSingle, true, "")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LogExecution(ctx, rec(core.TierComplex, core.RouteTwoPhase, false, "timeout")); err != nil {
		t.Fatal(err)
	}

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalExecutions != 2 || sum.SuccessRate != 0.5 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.ModeCounts[string(core.RouteSingle)] != 1 || sum.ModeCounts[string(core.RouteTwoPhase)] != 1 {
		t.Fatalf("unexpected mode counts: %+v", sum.ModeCounts)
	}
}
