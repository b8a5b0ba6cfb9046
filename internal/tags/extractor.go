package tags

import (
	"regexp"
	"strings"
)

// Source indicates how tags were identified in the input.
type Source string

const (
	// SourceExplicit means the user explicitly named tags ("tagged with work")
	SourceExplicit Source = "explicit"
	// SourceImplicit means tags were inferred from phrasing ("work tasks" → "work")
	SourceImplicit Source = "implicit"
)

// ExtractionResult is the structured output of pattern-based tag extraction.
// It is constructed per extraction call and consumed immediately by the
// operations layer; it is never persisted.
type ExtractionResult struct {
	Tags       []string
	Confidence float64
	Source     Source
	RawInput   string
	// RemoveAll is set when the input asks to clear the whole tag set. It is
	// kept out of Tags so the marker can never collide with a user tag.
	RemoveAll bool
}

const (
	// ExplicitFilterConfidence is the fixed confidence for unambiguous
	// "tagged with" filter phrasing.
	ExplicitFilterConfidence = 0.95
	// LowConfidenceThreshold is the confidence below which filter extractions
	// should trigger a clarification request instead of being acted on.
	LowConfidenceThreshold = 0.70
)

// Templates are evaluated in declaration order against the lowercased input;
// the first match wins.
var (
	creationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`tagged with\s+(.+)`),
		regexp.MustCompile(`tag(?:s)?:\s*(.+)`),
		regexp.MustCompile(`with tags?\s+(.+)`),
		regexp.MustCompile(`tag this with\s+(.+)`),
		regexp.MustCompile(`add tags?\s+(.+)`),
	}

	filterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`show\s+(?:me\s+)?tasks?\s+tagged\s+with\s+(.+)`),
		regexp.MustCompile(`list\s+(?:my\s+)?(.+)\s+tasks?`),
		regexp.MustCompile(`show\s+(?:my\s+)?(.+)\s+tasks?`),
		regexp.MustCompile(`tasks?\s+tagged\s+with\s+(.+)`),
		regexp.MustCompile(`my\s+(.+)\s+tasks?`),
	}

	removalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`remove\s+(?:the\s+)?(.+)\s+tag`),
		regexp.MustCompile(`untag\s+(?:this from\s+)?(.+)`),
		regexp.MustCompile(`delete\s+tag\s+(.+)`),
	}

	listTagsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`what tags do i have`),
		regexp.MustCompile(`list my tags`),
		regexp.MustCompile(`show (?:all )?(?:my )?tags`),
		regexp.MustCompile(`what are my tags`),
	}

	explicitFilterPhrase = regexp.MustCompile(`tagged\s+with`)
	removeAllPhrase      = regexp.MustCompile(`(?:remove|delete) all tags`)

	tagSeparator = regexp.MustCompile(`,\s*|\s+and\s+`)
)

// stopWords are dropped from captured tag fragments before normalization.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true,
	"this": true, "that": true,
	"from": true, "to": true,
	"and": true, "or": true, "with": true,
	"tagged": true, "tag": true, "tags": true,
}

// Extractor converts free-text task commands into structured tag operations
// using an ordered rule list. The determinism is deliberate: first-match-wins
// against auditable templates, no scoring across matches.
type Extractor struct{}

// NewExtractor creates a tag extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractForCreation extracts tags from a task creation command, e.g.
// "add task buy milk tagged with home, urgent".
//
// When no template matches, the result is empty at confidence 1.0: a creation
// command without tag phrasing reliably means "no tags intended".
func (e *Extractor) ExtractForCreation(message string) ExtractionResult {
	lower := strings.ToLower(message)

	for _, pattern := range creationPatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		valid, _ := ValidateTags(e.parseTagFragment(match[1]))
		return ExtractionResult{
			Tags:       valid,
			Confidence: confidence(true, len(valid)),
			Source:     SourceExplicit,
			RawInput:   message,
		}
	}

	return ExtractionResult{Confidence: 1.0, Source: SourceExplicit, RawInput: message}
}

// ExtractForFiltering extracts tags from a filtering command, e.g.
// "show me work tasks". Explicit "tagged with" phrasing is unambiguous by
// construction and is scored at a fixed 0.95; other filter matches are
// implicit. When no template matches, the result is empty at confidence 0.5,
// reflecting genuine ambiguity about intent.
func (e *Extractor) ExtractForFiltering(message string) ExtractionResult {
	lower := strings.ToLower(message)

	for _, pattern := range filterPatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		valid, _ := ValidateTags(e.parseTagFragment(match[1]))

		if explicitFilterPhrase.MatchString(lower) {
			return ExtractionResult{
				Tags:       valid,
				Confidence: ExplicitFilterConfidence,
				Source:     SourceExplicit,
				RawInput:   message,
			}
		}
		return ExtractionResult{
			Tags:       valid,
			Confidence: confidence(true, len(valid)),
			Source:     SourceImplicit,
			RawInput:   message,
		}
	}

	return ExtractionResult{Confidence: 0.5, Source: SourceImplicit, RawInput: message}
}

// ExtractForRemoval extracts tags from a removal command, e.g.
// "remove the urgent tag". "remove all tags" / "delete all tags" set the
// RemoveAll flag instead of naming tags.
func (e *Extractor) ExtractForRemoval(message string) ExtractionResult {
	lower := strings.ToLower(message)

	if removeAllPhrase.MatchString(lower) {
		return ExtractionResult{
			Confidence: 1.0,
			Source:     SourceExplicit,
			RawInput:   message,
			RemoveAll:  true,
		}
	}

	for _, pattern := range removalPatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		valid, _ := ValidateTags(e.parseTagFragment(match[1]))
		return ExtractionResult{
			Tags:       valid,
			Confidence: confidence(true, len(valid)),
			Source:     SourceExplicit,
			RawInput:   message,
		}
	}

	return ExtractionResult{Confidence: 0.5, Source: SourceExplicit, RawInput: message}
}

// IsListTagsQuery reports whether the message asks what tags exist
// ("what tags do I have", "list my tags").
func (e *Extractor) IsListTagsQuery(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range listTagsPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// parseTagFragment splits a captured tag group on commas or "and", strips stop
// words, and hyphen-joins any remaining multi-word fragment ("high priority" →
// "high-priority").
func (e *Extractor) parseTagFragment(fragment string) []string {
	parts := tagSeparator.Split(fragment, -1)

	var out []string
	for _, part := range parts {
		words := strings.Fields(part)
		filtered := words[:0]
		for _, w := range words {
			if !stopWords[w] {
				filtered = append(filtered, w)
			}
		}
		if len(filtered) > 0 {
			out = append(out, strings.Join(filtered, "-"))
		}
	}
	return out
}

// confidence implements the heuristic score: base 0.5, raised to 0.9 on a
// template match, plus 0.1 per extracted tag up to three, capped at 1.0.
func confidence(patternMatched bool, tagCount int) float64 {
	score := 0.5
	if patternMatched {
		score = 0.9
	}
	if tagCount > 0 {
		n := tagCount
		if n > 3 {
			n = 3
		}
		score += 0.1 * float64(n)
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
