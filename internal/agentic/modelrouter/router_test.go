package modelrouter

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

func testSet() ModelSet {
	return ModelSet{
		ContextMaster: "openthinker3-7b",
		Executor:      "qwen2.5-coder:7b",
		Fixer:         "deepseek-r1:14b",
	}
}

func TestRouteComplexIsTwoPhase(t *testing.T) {
	r := New(testSet())
	d := r.Route(core.Classification{Tier: core.TierComplex})
	if !d.UseTwoPhase {
		t.Fatal("expected complex tier to use two-phase")
	}
	if d.PlanningModel != "openthinker3-7b" || d.ExecutionModel != "qwen2.5-coder:7b" {
		t.Fatalf("unexpected model assignment: %+v", d)
	}
}

func TestRouteStandardCreativeMultiFileIsTwoPhase(t *testing.T) {
	r := New(testSet())
	d := r.Route(core.Classification{
		Tier: core.TierStandard,
		Characteristics: core.Characteristics{
			Creative:  true,
			MultiFile: true,
		},
	})
	if !d.UseTwoPhase {
		t.Fatal("expected standard+creative+multi-file to use two-phase")
	}
}

func TestRouteStandardAloneIsSinglePhase(t *testing.T) {
	r := New(testSet())
	d := r.Route(core.Classification{Tier: core.TierStandard})
	if d.UseTwoPhase {
		t.Fatal("expected plain standard tier to use single-phase")
	}
	if d.ExecutionModel != "qwen2.5-coder:7b" {
		t.Fatalf("unexpected execution model: %s", d.ExecutionModel)
	}
}

func TestSelectForFixer(t *testing.T) {
	r := New(testSet())
	if got := r.SelectForFixer(); got != "deepseek-r1:14b" {
		t.Fatalf("unexpected fixer model: %s", got)
	}
}
