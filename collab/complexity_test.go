package collab

import (
	"strings"
	"testing"
)

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		context     string
		wantComplex bool
		minScore    int
	}{
		{
			name:        "trivial question",
			query:       "What is AI?",
			wantComplex: false,
		},
		{
			name: "multi-part analytical query with context",
			query: "Please analyze the following options:\n" +
				"1. Build in-house\n" +
				"2. Buy off the shelf\n" +
				"3. Hybrid approach",
			context:     strings.Repeat("Background on the company and its constraints. ", 2),
			wantComplex: true,
			minScore:    4,
		},
		{
			name:        "short explanatory question",
			query:       "Why is the sky blue?",
			wantComplex: false,
			minScore:    1,
		},
		{
			name:        "long query alone is not complex",
			query:       strings.Repeat("tell me about cats and also dogs please ", 3),
			wantComplex: false,
			minScore:    2,
		},
		{
			name:        "long analytical query crosses threshold",
			query:       "Compare the performance characteristics of these two database engines in detail, covering reads and writes.",
			wantComplex: true,
			minScore:    4,
		},
		{
			name:        "keyword inside larger word does not count",
			query:       "Show me the showroom schedule",
			wantComplex: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyComplexity(tt.query, tt.context)

			if got.IsComplex != tt.wantComplex {
				t.Errorf("IsComplex = %v (score %d, reasons %v), want %v",
					got.IsComplex, got.Score, got.Reasons, tt.wantComplex)
			}
			if got.Score < tt.minScore {
				t.Errorf("Score = %d, want >= %d (reasons %v)", got.Score, tt.minScore, got.Reasons)
			}
			if (got.Score >= complexityThreshold) != got.IsComplex {
				t.Errorf("IsComplex inconsistent with score %d", got.Score)
			}
		})
	}
}

func TestClassifyComplexityDeterministic(t *testing.T) {
	query := "Analyze this:\n1. First\n2. Second"
	context := strings.Repeat("c", 60)

	first := ClassifyComplexity(query, context)
	for i := 0; i < 10; i++ {
		again := ClassifyComplexity(query, context)
		if again.Score != first.Score || again.IsComplex != first.IsComplex {
			t.Fatalf("classification changed between calls: %+v vs %+v", first, again)
		}
	}
}
