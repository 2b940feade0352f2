package classifier

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

func TestClassifyDeterministic(t *testing.T) {
	c := New()
	got1 := c.Classify("refactor the payments module")
	got2 := c.Classify("refactor the payments module")
	if got1.Tier != got2.Tier || got1.Route != got2.Route {
		t.Fatalf("classification not deterministic: %+v vs %+v", got1, got2)
	}
}

func TestClassifyCalibrationCorpus(t *testing.T) {
	c := New()
	cases := []struct {
		request string
		want    core.Tier
	}{
		{"add a function", core.TierSimple},
		{"fix typo", core.TierSimple},
		{"build a component", core.TierStandard},
		{"refactor module", core.TierStandard},
		{"design complete application with HTML, CSS, JS", core.TierComplex},
		{"create beautiful modern landing page", core.TierComplex},
	}

	matches := 0
	for _, tc := range cases {
		got := c.Classify(tc.request)
		if got.Tier == tc.want {
			matches++
		} else {
			t.Logf("classify(%q) = %s, want %s", tc.request, got.Tier, tc.want)
		}
	}

	agreement := float64(matches) / float64(len(cases))
	if agreement < 0.8 {
		t.Fatalf("calibration agreement %.2f below required 0.80", agreement)
	}
}

func TestRouterInvariant(t *testing.T) {
	c := New()

	complex := c.Classify("design a complete application architecture from scratch")
	if complex.Route != core.RouteTwoPhase {
		t.Fatalf("expected complex tier to route two-phase, got %s", complex.Route)
	}

	standardCreativeMultiFile := c.Classify("create a beautiful modern landing page with index.html, styles.css and script.js")
	if standardCreativeMultiFile.Tier == core.TierStandard && !(standardCreativeMultiFile.Route == core.RouteTwoPhase) {
		t.Fatalf("expected standard+creative+multi-file to route two-phase, got tier=%s route=%s", standardCreativeMultiFile.Tier, standardCreativeMultiFile.Route)
	}

	simple := c.Classify("list files in the current directory")
	if simple.Route != core.RouteSingle {
		t.Fatalf("expected simple tier to route single-phase, got %s", simple.Route)
	}
}
