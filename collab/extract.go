package collab

import (
	"regexp"
	"strings"
)

const (
	// repLineLimit caps a section's representative sentence.
	repLineLimit = 150

	// fallbackThreshold is the minimum useful extraction length; shorter
	// results mean the draft had too little structure to mine.
	fallbackThreshold = 100

	elisionMarker = "\n...\n"
)

var (
	headingPattern = regexp.MustCompile(`^\s*(?:#{1,6}\s+\S|\d+[.)]\s+\S|[A-Za-z][.)]\s+\S|\*\*[^*]+\*\*:?\s*$)`)
	bulletPattern  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+\S`)
)

// extractKeySections compresses a draft into its headings, bullet points and
// one representative sentence per section, bounded by maxChars. Drafts with
// too little structure fall back to a plain prefix truncation. The output is
// lossy on purpose: the reviewer stage needs anchoring, not the full text.
func extractKeySections(draft string, maxChars int) string {
	var kept []string
	captureBody := false

	for _, line := range strings.Split(draft, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case headingPattern.MatchString(line):
			kept = append(kept, trimmed)
			captureBody = true
		case bulletPattern.MatchString(line):
			kept = append(kept, trimmed)
		case captureBody && len(trimmed) > 20:
			if len(trimmed) > repLineLimit {
				trimmed = trimmed[:repLineLimit] + "..."
			}
			kept = append(kept, trimmed)
			captureBody = false
		}
	}

	result := strings.Join(kept, "\n")
	if len(result) < fallbackThreshold {
		if len(draft) > maxChars {
			return draft[:maxChars]
		}
		return draft
	}
	if len(result) > maxChars {
		half := maxChars / 2
		result = result[:half] + elisionMarker + result[len(result)-half:]
	}
	return result
}
