package tokens

import "strings"

// DefaultCompressor implements the three bounded compression strategies
// from original_source/tools/token_counter.py's ContextCompressor:
// compress_context, compress_plan, and compress_results.
type DefaultCompressor struct{}

// NewDefaultCompressor returns the default Compressor.
func NewDefaultCompressor() *DefaultCompressor { return &DefaultCompressor{} }

// CompressContext truncates a gathered-context map to the bounds the
// Context Gatherer itself targets: a 500-char structure summary, the
// top 5 relevant files, the first 200 chars of the top 3 dependency
// files, and the top 3 found patterns.
func (DefaultCompressor) CompressContext(ctx map[string]any, maxTokens int) map[string]any {
	out := make(map[string]any, len(ctx))

	if structure, ok := ctx["project_structure"].(string); ok {
		out["project_structure"] = truncate(structure, 500)
	}

	if deps, ok := ctx["dependencies"].(map[string]string); ok {
		trimmed := make(map[string]string, 3)
		count := 0
		for k, v := range deps {
			if count >= 3 {
				break
			}
			trimmed[k] = truncate(v, 200)
			count++
		}
		out["dependencies"] = trimmed
	}

	if files, ok := ctx["relevant_files"].([]string); ok {
		limit := 5
		if len(files) < limit {
			limit = len(files)
		}
		out["relevant_files"] = append([]string{}, files[:limit]...)
		if len(files) > 5 {
			out["file_count"] = len(files)
			out["note"] = "file list truncated"
		}
	}

	if patterns, ok := ctx["patterns_found"].([]string); ok {
		limit := 3
		if len(patterns) < limit {
			limit = len(patterns)
		}
		out["patterns_found"] = append([]string{}, patterns[:limit]...)
	}

	if summary, ok := ctx["summary"]; ok {
		out["summary"] = summary
	}

	return out
}

// CompressPlan keeps only plan lines carrying actionable signal (file
// references, structural markers, numbered steps) within a per-line
// token budget, matching compress_plan's keyword allowlist.
func (DefaultCompressor) CompressPlan(plan string, maxTokens int) string {
	keywords := []string{"file:", "create", "function", "class", "import", "1.", "2.", "3."}

	var kept []string
	budget := maxTokens
	for _, line := range strings.Split(plan, "\n") {
		lower := strings.ToLower(line)
		match := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		cost := EstimateTokens(line)
		if cost > budget {
			break
		}
		kept = append(kept, line)
		budget -= cost
	}
	return strings.Join(kept, "\n")
}

// CompressResults reduces tool execution results to a tool/success/path
// summary plus a truncated error message, accumulating until the token
// budget is exhausted, matching compress_results.
func (DefaultCompressor) CompressResults(results []map[string]any, maxTokens int) []map[string]any {
	var out []map[string]any
	budget := maxTokens

	for _, r := range results {
		summary := map[string]any{
			"tool":    r["tool"],
			"success": r["success"],
		}
		if path, ok := r["path"]; ok {
			summary["path"] = path
		}
		if success, _ := r["success"].(bool); !success {
			if errMsg, ok := r["error"].(string); ok {
				summary["error"] = truncate(errMsg, 100)
			}
		}

		cost := EstimateTokens(summary)
		if cost > budget {
			break
		}
		out = append(out, summary)
		budget -= cost
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
