package tokens

import "testing"

func TestEstimateTokensBytesOverFour(t *testing.T) {
	got := EstimateTokens("abcdefgh")
	if got != 2 {
		t.Fatalf("expected 2 tokens for 8 bytes, got %d", got)
	}
}

func TestBudgetForKnownPhases(t *testing.T) {
	a := New(0, nil, nil)
	cases := map[Phase]int{
		PhaseContextGathering: 2000,
		PhasePlanning:         2000,
		PhaseExecution:        2500,
		PhaseVerification:     1000,
		PhaseSystemPrompt:     500,
	}
	for phase, want := range cases {
		if got := a.BudgetFor(phase); got != want {
			t.Errorf("BudgetFor(%s) = %d, want %d", phase, got, want)
		}
	}
	if got := a.BudgetFor("unknown"); got != defaultPhaseBudget {
		t.Errorf("BudgetFor(unknown) = %d, want %d", got, defaultPhaseBudget)
	}
}

func TestTrackWithinAndOverBudget(t *testing.T) {
	a := New(8000, nil, nil)
	small := a.Track(PhaseSystemPrompt, "short")
	if !small.WithinBudget {
		t.Fatal("expected small content to stay within system_prompt budget")
	}

	big := make([]byte, 3000)
	for i := range big {
		big[i] = 'x'
	}
	over := a.Track(PhaseSystemPrompt, string(big))
	if over.WithinBudget {
		t.Fatal("expected oversized content to exceed system_prompt budget")
	}
}

func TestCompressIfNeededOnlyCompressesOverBudget(t *testing.T) {
	a := New(8000, nil, nil)
	small := map[string]any{"summary": "ok"}
	if got := a.CompressIfNeeded(PhaseContextGathering, small); got["summary"] != "ok" {
		t.Fatalf("expected untouched map for small content, got %v", got)
	}

	files := make([]string, 20)
	for i := range files {
		files[i] = "file.go"
	}
	big := map[string]any{
		"relevant_files":    files,
		"project_structure": string(make([]byte, 5000)),
	}
	compressed := a.CompressIfNeeded(PhaseContextGathering, big)
	got, _ := compressed["relevant_files"].([]string)
	if len(got) > 5 {
		t.Fatalf("expected relevant_files bounded to 5, got %d", len(got))
	}
}
