// Package parser extracts TOOL: name | PARAMS: {json} calls from model
// output, tolerating reasoning/<think> blocks and minor JSON damage.
// Grounded on original_source/tools/parser.py's ToolParser, rewritten as
// a small state machine per SPEC_FULL.md's design notes.
package parser

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

var (
	thinkBlockRE = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkOpenRE  = regexp.MustCompile(`(?i)<think>`)
	toolHeaderRE = regexp.MustCompile(`TOOL:\s*(\w+)\s*\|\s*PARAMS:\s*`)

	// invalidBackslashRE matches a backslash not followed by a valid JSON
	// escape character, the Windows-path recovery heuristic from
	// original_source/tools/parser.py.
	invalidBackslashRE = regexp.MustCompile(`\\([^"\\/bfnrt])`)
)

// Parser turns raw model output into an ordered list of tool calls.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// StripThinking removes all <think>...</think> blocks from response.
func StripThinking(response string) string {
	return thinkBlockRE.ReplaceAllString(response, "")
}

// StripThinking is the method form used by callers holding a *Parser.
func (p *Parser) StripThinking(response string) string {
	return StripThinking(response)
}

// HasThinkingOnly reports whether response contains a <think> block but
// no TOOL: header outside of it — the signal the single-phase executor
// uses to trigger its one-shot reasoning-model follow-up.
func HasThinkingOnly(response string) bool {
	if !thinkOpenRE.MatchString(response) {
		return false
	}
	stripped := StripThinking(response)
	return !toolHeaderRE.MatchString(stripped)
}

// HasThinkingOnly is the method form used by callers holding a *Parser.
func (p *Parser) HasThinkingOnly(response string) bool {
	return HasThinkingOnly(response)
}

// ExtractThinking returns the concatenated contents of every
// <think>...</think> block in response.
func ExtractThinking(response string) string {
	matches := regexp.MustCompile(`(?is)<think>(.*?)</think>`).FindAllStringSubmatch(response, -1)
	var parts []string
	for _, m := range matches {
		parts = append(parts, m[1])
	}
	return strings.Join(parts, "\n")
}

// Parse extracts tool calls from a raw model response, in source order.
// An empty slice (not nil-vs-empty significant) is a valid result.
func (p *Parser) Parse(response string) []core.ToolCall {
	actionText := StripThinking(response)

	var calls []core.ToolCall
	headers := toolHeaderRE.FindAllStringSubmatchIndex(actionText, -1)

	for _, idx := range headers {
		name := actionText[idx[2]:idx[3]]
		jsonStart := idx[1]

		jsonEnd := findMatchingBrace(actionText, jsonStart)
		if jsonEnd == -1 {
			p.logger.Warn("tool call has unbalanced braces, skipping", "tool", name)
			continue
		}

		raw := actionText[jsonStart:jsonEnd]
		params, ok := parseParams(raw)
		if !ok {
			p.logger.Warn("tool call params failed to parse, skipping", "tool", name)
			continue
		}

		calls = append(calls, core.ToolCall{
			Name:        name,
			Params:      params,
			OriginIndex: idx[0],
		})
	}

	return calls
}

// findMatchingBrace scans forward from start (which must point at or
// before the opening '{') and returns the index just past the matching
// closing brace, honoring string literals and escape sequences. Returns
// -1 if no balanced object is found.
func findMatchingBrace(text string, start int) int {
	// Skip whitespace to find the opening brace.
	i := start
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	if i >= len(text) || text[i] != '{' {
		return -1
	}

	depth := 0
	inString := false
	escapeNext := false

	for ; i < len(text); i++ {
		c := text[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		switch {
		case c == '\\' && inString:
			escapeNext = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}

	return -1
}

// parseParams attempts json.Unmarshal, then applies the two recovery
// passes original_source/tools/parser.py uses before giving up: escape
// bare backslashes, then collapse triple-quotes.
func parseParams(raw string) (map[string]any, bool) {
	if params, ok := tryUnmarshal(raw); ok {
		return params, true
	}

	fixed := invalidBackslashRE.ReplaceAllString(raw, `\\$1`)
	fixed = strings.ReplaceAll(fixed, `"""`, `"`)
	if params, ok := tryUnmarshal(fixed); ok {
		return params, true
	}

	return nil, false
}

func tryUnmarshal(raw string) (map[string]any, bool) {
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, false
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, true
}
