package gatherer

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
)

func newRegistryWithFixtures() *toolrouter.Registry {
	r := toolrouter.New(nil, nil)
	r.Register(toolrouter.Spec{
		Name: "search_content",
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult {
			q, _ := params["query"].(string)
			if q == "" {
				return core.ToolResult{Success: false, Error: "missing query"}
			}
			return core.ToolResult{Success: true, Fields: map[string]any{
				"paths": []string{"internal/" + q + "/a.go", "internal/" + q + "/b.go"},
			}}
		},
	})
	r.Register(toolrouter.Spec{
		Name: "list_directory",
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult {
			return core.ToolResult{Success: true, Fields: map[string]any{
				"dirs":  []string{"internal", "cmd"},
				"files": []string{"go.mod", "README.md"},
			}}
		},
	})
	r.Register(toolrouter.Spec{
		Name: "read_file",
		Handler: func(ctx context.Context, params map[string]any) core.ToolResult {
			path, _ := params["path"].(string)
			if path == "package.json" {
				return core.ToolResult{Success: true, Fields: map[string]any{"content": `{"name":"demo"}`}}
			}
			return core.ToolResult{Success: false, Error: "not found"}
		},
	})
	return r
}

func TestExtractKeywordsFindsTechTermsAndQuotedPhrases(t *testing.T) {
	kws := extractKeywords(`add an "auth" endpoint to the api with a database migration`)
	joined := strings.Join(kws, ",")
	if !strings.Contains(joined, "api") || !strings.Contains(joined, "database") {
		t.Fatalf("expected tech keywords in %v", kws)
	}
}

func TestExtractKeywordsCapsAtFive(t *testing.T) {
	kws := extractKeywords("api database authentication function class endpoint component test")
	if len(kws) > 5 {
		t.Fatalf("expected at most 5 keywords, got %d: %v", len(kws), kws)
	}
}

func TestGatherForTaskPopulatesRelevantFilesAndDependencies(t *testing.T) {
	g := New(newRegistryWithFixtures())
	c := g.GatherForTask(context.Background(), "add an api endpoint")

	if len(c.RelevantFiles) == 0 {
		t.Fatal("expected relevant files to be populated")
	}
	if c.Dependencies["package.json"] == "" {
		t.Fatal("expected package.json dependency content")
	}
	if c.Summary == "" {
		t.Fatal("expected a non-empty summary")
	}
}

func TestGatherForTaskIncludesStructureOnlyWhenScaffolding(t *testing.T) {
	g := New(newRegistryWithFixtures())

	withScaffold := g.GatherForTask(context.Background(), "create a new api endpoint")
	if withScaffold.ProjectStructure == "" {
		t.Fatal("expected project structure for a creation request")
	}

	withoutScaffold := g.GatherForTask(context.Background(), "explain the api endpoint")
	if withoutScaffold.ProjectStructure != "" {
		t.Fatal("expected no project structure for a non-creation request")
	}
}

func TestFormatForModelIncludesAllSections(t *testing.T) {
	c := Context{
		RelevantFiles:    []string{"a.go"},
		ProjectStructure: "Directories:\n  internal/\n",
		Dependencies:     map[string]string{"package.json": "{}"},
		PatternsFound:    []string{"Function found: 2 files"},
		Summary:          "1 relevant files, 1 dependency manifests, 1 patterns found",
	}
	out := c.FormatForModel()

	for _, want := range []string{"GATHERED CONTEXT", c.Summary, "a.go", "package.json", "Function found"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestContextToMapAndBackRoundTrips(t *testing.T) {
	c := Context{
		RelevantFiles:    []string{"a.go", "b.go"},
		ProjectStructure: "Directories:\n  internal/\n",
		Dependencies:     map[string]string{"package.json": "{}"},
		PatternsFound:    []string{"Function found: 2 files"},
		Summary:          "2 relevant files, 1 dependency manifests, 1 patterns found",
	}

	got := ContextFromMap(c.ToMap())
	if got.ProjectStructure != c.ProjectStructure {
		t.Errorf("ProjectStructure = %q, want %q", got.ProjectStructure, c.ProjectStructure)
	}
	if got.Summary != c.Summary {
		t.Errorf("Summary = %q, want %q", got.Summary, c.Summary)
	}
	if len(got.RelevantFiles) != 2 || got.RelevantFiles[0] != "a.go" {
		t.Errorf("RelevantFiles = %v, want %v", got.RelevantFiles, c.RelevantFiles)
	}
	if got.Dependencies["package.json"] != "{}" {
		t.Errorf("Dependencies = %v, want %v", got.Dependencies, c.Dependencies)
	}
	if len(got.PatternsFound) != 1 || got.PatternsFound[0] != c.PatternsFound[0] {
		t.Errorf("PatternsFound = %v, want %v", got.PatternsFound, c.PatternsFound)
	}
}
