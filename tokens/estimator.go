// Package tokens provides token-cost estimation for text and context windows,
// and budget-based context trimming.
package tokens

import (
	"sync"

	"github.com/threadloom/threadloom/types"
)

// Token accounting constants. Overheads approximate the formatting tokens the
// chat-completion wire format adds around each message and conversation.
const (
	// MessageOverhead is added per message for role and framing tokens.
	MessageOverhead = 4

	// ConversationOverhead is added once per assembled conversation.
	ConversationOverhead = 3

	// charsPerToken is the approximation ratio used when no exact encoder is
	// available for a model.
	charsPerToken = 4
)

// Encoder produces an exact token count for a piece of text. Implementations
// wrap model-specific sub-word tokenizers.
type Encoder interface {
	Count(text string) int
}

// EncoderFunc adapts a plain function to the Encoder interface.
type EncoderFunc func(text string) int

// Count implements Encoder.
func (f EncoderFunc) Count(text string) int { return f(text) }

// Estimator estimates token costs. For models with a registered encoder it
// counts exactly; for all others it approximates at ~4 characters per token.
// Apart from the per-model encoder cache it holds no state, so repeated calls
// with the same inputs always return the same result.
type Estimator struct {
	lookup func(model string) Encoder

	mu    sync.Mutex
	cache map[string]Encoder
}

// NewEstimator creates an Estimator. lookup resolves a model identifier to an
// exact encoder; it may be nil, in which case every model uses the
// character-based approximation. The lookup result is cached per model.
func NewEstimator(lookup func(model string) Encoder) *Estimator {
	return &Estimator{
		lookup: lookup,
		cache:  make(map[string]Encoder),
	}
}

// Estimate returns the estimated token count for text under the given model.
// Empty text always costs zero tokens.
func (e *Estimator) Estimate(text, model string) int {
	if len(text) == 0 {
		return 0
	}
	if enc := e.encoderFor(model); enc != nil {
		return enc.Count(text)
	}
	return approximate(text)
}

// EstimateMessages returns the estimated token count for a full context
// window: the per-message content estimates, a fixed overhead per message,
// and a fixed overhead for the conversation itself.
func (e *Estimator) EstimateMessages(entries []types.Entry, model string) int {
	total := 0
	for _, entry := range entries {
		total += e.Estimate(entry.Content, model)
		total += MessageOverhead
	}
	return total + ConversationOverhead
}

func (e *Estimator) encoderFor(model string) Encoder {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.cache[model]; ok {
		return enc
	}

	var enc Encoder
	if e.lookup != nil {
		enc = e.lookup(model)
	}
	e.cache[model] = enc
	return enc
}

// approximate estimates token count from character count, rounding up with a
// minimum of one token for non-empty text.
func approximate(text string) int {
	n := (len(text) + charsPerToken - 1) / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}
