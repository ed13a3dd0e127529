// Package registry provides a static lookup table of model capabilities:
// context window size, per-token pricing, and the upstream provider.
package registry

import "sort"

// Pricing is the cost per 1K tokens, in USD.
type Pricing struct {
	Input  float64
	Output float64
}

// ModelInfo describes a single model's capabilities.
type ModelInfo struct {
	Provider      string
	DisplayName   string
	ContextWindow int
	Pricing       Pricing
}

// Defaults applied when a model is not in the registry.
const DefaultContextWindow = 8000

// DefaultPricing is the assumed pricing for unknown models.
var DefaultPricing = Pricing{Input: 0.002, Output: 0.006}

// KnownModels maps full model identifiers to their capabilities.
var KnownModels = map[string]ModelInfo{
	"openai/gpt-4-turbo": {
		Provider:      "openai",
		DisplayName:   "GPT-4 Turbo",
		ContextWindow: 128000,
		Pricing:       Pricing{Input: 0.01, Output: 0.03},
	},
	"anthropic/claude-3.5-sonnet": {
		Provider:      "anthropic",
		DisplayName:   "Claude 3.5 Sonnet",
		ContextWindow: 200000,
		Pricing:       Pricing{Input: 0.003, Output: 0.015},
	},
	"openai/gpt-3.5-turbo": {
		Provider:      "openai",
		DisplayName:   "GPT-3.5 Turbo",
		ContextWindow: 16385,
		Pricing:       Pricing{Input: 0.0005, Output: 0.0015},
	},
}

// IsValid reports whether the model identifier exists in the registry.
func IsValid(model string) bool {
	_, ok := KnownModels[model]
	return ok
}

// List returns all known model identifiers in sorted order.
func List() []string {
	models := make([]string, 0, len(KnownModels))
	for id := range KnownModels {
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}

// Get returns the model info and whether the model is known.
func Get(model string) (ModelInfo, bool) {
	info, ok := KnownModels[model]
	return info, ok
}

// ContextWindow returns the model's context window size in tokens, falling
// back to DefaultContextWindow for unknown models.
func ContextWindow(model string) int {
	if info, ok := KnownModels[model]; ok && info.ContextWindow > 0 {
		return info.ContextWindow
	}
	return DefaultContextWindow
}

// PricePerKTokens returns the model's pricing, falling back to DefaultPricing
// for unknown models.
func PricePerKTokens(model string) Pricing {
	if info, ok := KnownModels[model]; ok {
		return info.Pricing
	}
	return DefaultPricing
}

// Provider returns the upstream provider name for a model, or "" if unknown.
func Provider(model string) string {
	if info, ok := KnownModels[model]; ok {
		return info.Provider
	}
	return ""
}
