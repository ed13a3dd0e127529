package collab

import (
	"regexp"
	"strings"
)

// complexityThreshold is the minimum score at which a query is considered
// complex enough to warrant the reviewer stage.
const complexityThreshold = 4

// Scoring weights and limits for the complexity classifier.
const (
	longQueryChars    = 100
	minListMatches    = 2
	contextMinChars   = 50
	longQueryScore    = 2
	listScore         = 3
	analyticalScore   = 2
	explanatoryScore  = 1
	contextGivenScore = 1
)

var (
	listItemPattern = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*•])\s+\S`)

	analyticalKeywords = []string{
		"analyze", "analyse", "compare", "contrast", "evaluate",
		"strategy", "strategic", "design", "architect", "assess",
		"trade-off", "tradeoff", "pros and cons",
	}
	explanatoryKeywords = []string{"how", "why", "explain", "walk through", "step by step"}

	wordPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, kw := range append(append([]string{}, analyticalKeywords...), explanatoryKeywords...) {
		wordPatterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
}

// ComplexityScore is the classifier's verdict on a query. It is derived
// purely from the query and optional context text.
type ComplexityScore struct {
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
	IsComplex bool     `json:"is_complex"`
}

// ClassifyComplexity scores a query's complexity deterministically. Long
// queries, multi-part list structure, analytical or explanatory intent, and
// supplied context each contribute a fixed amount; the reviewer stage runs
// when the total reaches the threshold.
func ClassifyComplexity(query, context string) ComplexityScore {
	score := ComplexityScore{}

	if len(query) >= longQueryChars {
		score.add(longQueryScore, "long_query")
	}
	if len(listItemPattern.FindAllString(query, -1)) >= minListMatches {
		score.add(listScore, "multi_part")
	}

	combined := strings.ToLower(query + " " + context)
	if containsAny(combined, analyticalKeywords) {
		score.add(analyticalScore, "analytical_intent")
	}
	if containsAny(combined, explanatoryKeywords) {
		score.add(explanatoryScore, "explanatory_intent")
	}
	if len(context) > contextMinChars {
		score.add(contextGivenScore, "context_provided")
	}

	score.IsComplex = score.Score >= complexityThreshold
	return score
}

func (s *ComplexityScore) add(points int, reason string) {
	s.Score += points
	s.Reasons = append(s.Reasons, reason)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if wordPatterns[kw].MatchString(text) {
			return true
		}
	}
	return false
}
