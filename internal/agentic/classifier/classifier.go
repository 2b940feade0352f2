// Package classifier implements the Task Classifier: a deterministic,
// rule-ordered mapping from request text to a Tier and derived
// Characteristics. Grounded on
// original_source/tools/task_classifier.py's TaskClassifier, with its
// keyword/pattern catalogs ported into Go regexes.
package classifier

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

var (
	complexPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)complete\s+application`),
		regexp.MustCompile(`(?i)full(\s|-)stack`),
		regexp.MustCompile(`(?i)design\s+system`),
		regexp.MustCompile(`(?i)microservice`),
		regexp.MustCompile(`(?i)architecture`),
		regexp.MustCompile(`(?i)from\s+scratch`),
	}
	complexKeywords = []string{
		"architecture", "microservices", "design system", "full application",
		"entire system", "complete rewrite", "multi-tier",
	}

	standardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)add\s+(a\s+)?(new\s+)?feature`),
		regexp.MustCompile(`(?i)fix\s+(the\s+)?bug`),
	}
	standardKeywords = []string{
		"refactor", "debug", "test", "component", "endpoint", "integrate",
		"optimize", "update", "modify",
	}

	simplePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(list|show|read|display)\b`),
		regexp.MustCompile(`(?i)fix\s+typo`),
	}
	simpleKeywords = []string{
		"list", "read", "show", "rename", "typo", "what is", "explain",
	}

	creativeKeywords = []string{
		"beautiful", "modern", "creative", "design", "landing page",
		"gradient", "stylish", "elegant", "polished", "aesthetic",
	}

	multiFilePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(index\.html|styles?\.css|script\.js)`),
		regexp.MustCompile(`(?i)multiple\s+files`),
		regexp.MustCompile(`(?i)several\s+(files|components|modules)`),
	}

	fileExtensionRE = regexp.MustCompile(`(?i)\.(html|css|js|jsx|tsx|ts|py|go|java|json)\b`)
	quotedPhraseRE  = regexp.MustCompile(`"([^"]+)"`)

	applicationWordRE = regexp.MustCompile(`(?i)\ban?\s+application\b`)
)

// Classifier is a pure function over request text.
type Classifier struct{}

// New creates a Classifier. It carries no state: classification is
// deterministic (Property 1 in SPEC_FULL.md's Testable Properties).
func New() *Classifier { return &Classifier{} }

// Classify maps request text to a Classification.
func (c *Classifier) Classify(request string) core.Classification {
	lower := strings.ToLower(request)

	chars := core.Characteristics{
		MultiFile:   checkMultiFile(lower),
		Creative:    checkCreative(lower),
		FileCount:   estimateFileCount(lower),
		ExpectedOps: estimateOperations(lower),
	}

	tier, reasoning := classifyTier(lower, chars)
	route, swap := determineRoute(tier, chars)

	return core.Classification{
		Tier:                 tier,
		Route:                route,
		EstimatedSwapSeconds: swap,
		Confidence:           calculateConfidence(request, tier),
		Characteristics:      chars,
		Reasoning:            reasoning,
	}
}

// classifyTier applies the rule cascade in spec §4.5: first match wins.
func classifyTier(lower string, chars core.Characteristics) (core.Tier, string) {
	if matchesAny(lower, complexPatterns) || containsAny(lower, complexKeywords) {
		return core.TierComplex, "matched complex keyword or pattern"
	}
	if chars.MultiFile && chars.Creative {
		return core.TierComplex, "multi-file and creative request"
	}
	if chars.FileCount >= 4 || chars.ExpectedOps >= 5 {
		return core.TierComplex, "high estimated file count or operation count"
	}
	if matchesAny(lower, standardPatterns) || containsAny(lower, standardKeywords) || chars.MultiFile {
		return core.TierStandard, "matched standard keyword, pattern, or multi-file request"
	}
	if matchesAny(lower, simplePatterns) || containsAny(lower, simpleKeywords) {
		return core.TierSimple, "matched simple keyword or pattern"
	}
	return core.TierStandard, "default tier"
}

// determineRoute mirrors ModelRouter.should_use_two_phase's rule,
// returning the expected VRAM swap overhead alongside it:
// qwen_only -> 0.0, openthinker_then_qwen -> 2.5 (§4.5's
// _calculate_swap_overhead).
func determineRoute(tier core.Tier, chars core.Characteristics) (core.Route, float64) {
	useTwoPhase := tier == core.TierComplex || (tier == core.TierStandard && chars.Creative && chars.MultiFile)
	if useTwoPhase {
		return core.RouteTwoPhase, 2.5
	}
	return core.RouteSingle, 0.0
}

func checkMultiFile(lower string) bool {
	if matchesAny(lower, multiFilePatterns) {
		return true
	}
	matches := fileExtensionRE.FindAllString(lower, -1)
	seen := map[string]bool{}
	for _, m := range matches {
		seen[strings.ToLower(m)] = true
	}
	return len(seen) >= 2
}

func checkCreative(lower string) bool {
	return containsAny(lower, creativeKeywords)
}

func estimateFileCount(lower string) int {
	matches := fileExtensionRE.FindAllString(lower, -1)
	seen := map[string]bool{}
	for _, m := range matches {
		seen[strings.ToLower(m)] = true
	}
	count := len(seen)
	if applicationWordRE.MatchString(lower) && count < 3 {
		count = 3
	}
	return count
}

func estimateOperations(lower string) int {
	verbs := []string{"create", "write", "add", "update", "delete", "refactor", "implement", "build", "generate"}
	count := 0
	for _, v := range verbs {
		if strings.Contains(lower, v) {
			count++
		}
	}
	return count
}

// calculateConfidence mirrors _calculate_confidence: a base score from
// word count, nudged by tier strength.
func calculateConfidence(request string, tier core.Tier) float64 {
	words := len(strings.Fields(request))
	var base float64
	switch {
	case words < 5:
		base = 0.7
	case words < 10:
		base = 0.85
	default:
		base = 0.95
	}

	switch tier {
	case core.TierComplex, core.TierSimple:
		base += 0.05
	case core.TierStandard:
		base -= 0.05
	}

	if base > 1 {
		base = 1
	}
	if base < 0 {
		base = 0
	}
	return base
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// quotedPhrases extracts double-quoted substrings, used by the Context
// Gatherer's keyword extraction (§4.8) as well as classification
// debugging output.
func quotedPhrases(s string) []string {
	matches := quotedPhraseRE.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
