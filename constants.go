package threadloom

// Defaults applied by Config.Validate.
const (
	// DefaultSummarizeThreshold is the message-count interval between
	// background summaries.
	DefaultSummarizeThreshold = 10

	// DefaultMaxContextMessages caps how many recent messages are fetched
	// into a context window.
	DefaultMaxContextMessages = 20

	// DefaultMaxContextTokens is the token budget for an assembled context.
	DefaultMaxContextTokens = 8000

	// DefaultModel is used for threads that do not choose one.
	DefaultModel = "openai/gpt-4-turbo"

	// DefaultSummarizerModel is the dedicated cheap model for summaries.
	DefaultSummarizerModel = "openai/gpt-3.5-turbo"
)
