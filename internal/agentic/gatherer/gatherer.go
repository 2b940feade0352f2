// Package gatherer implements the Context Gatherer: a bounded snapshot
// of request-relevant project state built from keyword-driven search,
// a directory structure scan, and a fixed dependency-manifest probe.
// Grounded on original_source/tools/context_gatherer.py's
// ContextGatherer.
package gatherer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
)

// techKeywords is the closed set of terms probed for in a request,
// ported from context_gatherer.py's tech_keywords list.
var techKeywords = []string{
	"api", "database", "authentication", "function", "class", "endpoint",
	"component", "test", "config", "model", "schema", "route", "handler",
	"middleware", "service", "controller", "migration", "index", "cache",
	"queue",
}

var quotedPhraseRE = regexp.MustCompile(`"([^"]+)"`)

// dependencyManifests is the fixed list of manifest files probed for,
// from context_gatherer.py's _check_dependencies.
var dependencyManifests = []string{
	"package.json", "requirements.txt", "Pipfile", "pom.xml", "build.gradle", "Cargo.toml",
}

const (
	maxRelevantFiles = 10
	maxDependencies   = 3
	maxPatterns       = 3
	manifestReadChars = 500
)

// Context is the bounded snapshot produced for one request.
type Context struct {
	RelevantFiles    []string
	ProjectStructure string
	Dependencies     map[string]string
	PatternsFound    []string
	Summary          string
}

// Gatherer dispatches tool calls through a Registry to build Context;
// it is a consumer of registered tools, not a reimplementation of
// filesystem or search logic (spec §1's explicit scope note).
type Gatherer struct {
	tools *toolrouter.Registry
}

// New creates a Gatherer bound to a tool Registry.
func New(tools *toolrouter.Registry) *Gatherer {
	return &Gatherer{tools: tools}
}

// GatherForTask builds a bounded Context for request.
func (g *Gatherer) GatherForTask(ctx context.Context, request string) Context {
	keywords := extractKeywords(request)

	c := Context{
		RelevantFiles: g.searchRelevantFiles(ctx, keywords),
		Dependencies:  g.checkDependencies(ctx),
		PatternsFound: g.findCodePatterns(ctx),
	}

	if mentionsScaffolding(request) {
		c.ProjectStructure = g.projectStructure(ctx)
	}

	c.Summary = summarize(c)
	return c
}

// extractKeywords returns up to 5 deduplicated tech terms and quoted
// phrases found in request, matching _extract_keywords's cap.
func extractKeywords(request string) []string {
	lower := strings.ToLower(request)
	seen := map[string]bool{}
	var out []string

	for _, kw := range techKeywords {
		if strings.Contains(lower, kw) && !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
			if len(out) >= 5 {
				return out
			}
		}
	}

	for _, m := range quotedPhraseRE.FindAllStringSubmatch(request, -1) {
		phrase := strings.ToLower(m[1])
		if !seen[phrase] {
			seen[phrase] = true
			out = append(out, phrase)
			if len(out) >= 5 {
				return out
			}
		}
	}

	return out
}

func mentionsScaffolding(request string) bool {
	lower := strings.ToLower(request)
	for _, kw := range []string{"create", "new", "build", "generate"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (g *Gatherer) searchRelevantFiles(ctx context.Context, keywords []string) []string {
	seen := map[string]bool{}
	var files []string

	for _, kw := range keywords {
		result := g.tools.Dispatch(ctx, core.ToolCall{
			Name:   "search_content",
			Params: map[string]any{"query": kw},
		})
		if !result.Success {
			continue
		}
		paths, _ := result.Fields["paths"].([]string)
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
				if len(files) >= maxRelevantFiles {
					return files
				}
			}
		}
	}
	return files
}

func (g *Gatherer) projectStructure(ctx context.Context) string {
	result := g.tools.Dispatch(ctx, core.ToolCall{
		Name:   "list_directory",
		Params: map[string]any{"path": "."},
	})
	if !result.Success {
		return ""
	}

	dirs, _ := result.Fields["dirs"].([]string)
	files, _ := result.Fields["files"].([]string)

	var sb strings.Builder
	sb.WriteString("Directories:\n")
	for i, d := range dirs {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&sb, "  %s/\n", d)
	}
	sb.WriteString("Files:\n")
	for i, f := range files {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&sb, "  %s\n", f)
	}
	return sb.String()
}

func (g *Gatherer) checkDependencies(ctx context.Context) map[string]string {
	deps := make(map[string]string)
	for _, manifest := range dependencyManifests {
		if len(deps) >= maxDependencies {
			break
		}
		result := g.tools.Dispatch(ctx, core.ToolCall{
			Name:   "read_file",
			Params: map[string]any{"path": manifest},
		})
		if !result.Success {
			continue
		}
		content, _ := result.Fields["content"].(string)
		if content == "" {
			continue
		}
		if len(content) > manifestReadChars {
			content = content[:manifestReadChars]
		}
		deps[manifest] = content
	}
	return deps
}

// codeFileGlobs is searched one extension at a time: search_content's glob
// matching is filepath.Match, which has no brace-alternation, so a single
// "*.{py,js,ts,jsx,tsx}" pattern would never match anything.
var codeFileGlobs = []string{"*.py", "*.js", "*.ts", "*.jsx", "*.tsx"}

func (g *Gatherer) findCodePatterns(ctx context.Context) []string {
	var patterns []string
	for _, kind := range []string{"function", "class", "import", "export"} {
		seen := map[string]bool{}
		for _, glob := range codeFileGlobs {
			result := g.tools.Dispatch(ctx, core.ToolCall{
				Name:   "search_content",
				Params: map[string]any{"query": kind, "glob": glob},
			})
			if !result.Success {
				continue
			}
			paths, _ := result.Fields["paths"].([]string)
			for _, p := range paths {
				seen[p] = true
			}
		}
		if len(seen) == 0 {
			continue
		}
		patterns = append(patterns, fmt.Sprintf("%s found: %d files", strings.Title(kind), len(seen)))
		if len(patterns) >= maxPatterns {
			break
		}
	}
	return patterns
}

func summarize(c Context) string {
	return fmt.Sprintf("%d relevant files, %d dependency manifests, %d patterns found",
		len(c.RelevantFiles), len(c.Dependencies), len(c.PatternsFound))
}

// FormatForModel renders Context as a labeled text block for prompt
// injection, matching context_gatherer.py's format_for_llm layout.
func (c Context) FormatForModel() string {
	var sb strings.Builder
	sb.WriteString("=== GATHERED CONTEXT ===\n")
	fmt.Fprintf(&sb, "Summary: %s\n", c.Summary)

	if c.ProjectStructure != "" {
		sb.WriteString("\nProject Structure:\n")
		sb.WriteString(c.ProjectStructure)
	}

	if len(c.Dependencies) > 0 {
		sb.WriteString("\nDependencies:\n")
		for name, snippet := range c.Dependencies {
			fmt.Fprintf(&sb, "  %s:\n%s\n", name, snippet)
		}
	}

	if len(c.RelevantFiles) > 0 {
		sb.WriteString("\nRelevant Files:\n")
		for _, f := range c.RelevantFiles {
			fmt.Fprintf(&sb, "  %s\n", f)
		}
	}

	if len(c.PatternsFound) > 0 {
		sb.WriteString("\nPatterns Found:\n")
		for _, p := range c.PatternsFound {
			fmt.Fprintf(&sb, "  %s\n", p)
		}
	}

	sb.WriteString("=== END CONTEXT ===\n")
	return sb.String()
}

// ToMap converts Context to the map[string]any shape the Token
// Accountant's Compressor (internal/agentic/tokens) operates on, so the
// Orchestrator can compress a gathered Context before formatting it.
func (c Context) ToMap() map[string]any {
	return map[string]any{
		"project_structure": c.ProjectStructure,
		"dependencies":      c.Dependencies,
		"relevant_files":    c.RelevantFiles,
		"patterns_found":    c.PatternsFound,
		"summary":           c.Summary,
	}
}

// ContextFromMap rebuilds a Context from a map produced by ToMap, or by
// the Token Accountant's CompressContext acting on one.
func ContextFromMap(m map[string]any) Context {
	var c Context
	if v, ok := m["project_structure"].(string); ok {
		c.ProjectStructure = v
	}
	if v, ok := m["dependencies"].(map[string]string); ok {
		c.Dependencies = v
	}
	if v, ok := m["relevant_files"].([]string); ok {
		c.RelevantFiles = v
	}
	if v, ok := m["patterns_found"].([]string); ok {
		c.PatternsFound = v
	}
	if v, ok := m["summary"].(string); ok {
		c.Summary = v
	}
	return c
}
