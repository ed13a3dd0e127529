package threadloom

import (
	"fmt"

	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/logging"
	"github.com/threadloom/threadloom/registry"
	"github.com/threadloom/threadloom/storage"
)

// Config holds the configuration for an Orchestrator.
//
// Example:
//
//	store := storage.NewPostgres(pool)
//	client := gateway.NewOpenRouter(gateway.OpenRouterConfig{APIKey: key})
//	orch, _ := threadloom.New(threadloom.Config{
//	    Store:  store,
//	    Client: client,
//	})
type Config struct {
	// Store is the persistence backend (required)
	Store storage.Store

	// Client is the LLM gateway client (required)
	Client gateway.Client

	// DefaultModel is used when a thread has no model set.
	// Defaults to DefaultModel.
	DefaultModel string

	// SummarizerModel is the dedicated model for background summaries.
	// Defaults to DefaultSummarizerModel.
	SummarizerModel string

	// SummarizeThreshold is the message-count interval between summaries.
	// Defaults to DefaultSummarizeThreshold.
	SummarizeThreshold int

	// MaxContextMessages caps messages fetched per context window.
	// Defaults to DefaultMaxContextMessages.
	MaxContextMessages int

	// MaxContextTokens is the context token budget. Defaults to
	// DefaultMaxContextTokens.
	MaxContextTokens int

	// Logger receives structured events. Defaults to no-op.
	Logger logging.Logger
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: Store is required", ErrInvalidConfig)
	}
	if c.Client == nil {
		return fmt.Errorf("%w: Client is required", ErrInvalidConfig)
	}

	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.SummarizerModel == "" {
		c.SummarizerModel = DefaultSummarizerModel
	}
	if !registry.IsValid(c.DefaultModel) {
		return fmt.Errorf("%w: unknown DefaultModel %q", ErrInvalidConfig, c.DefaultModel)
	}
	if !registry.IsValid(c.SummarizerModel) {
		return fmt.Errorf("%w: unknown SummarizerModel %q", ErrInvalidConfig, c.SummarizerModel)
	}

	if c.SummarizeThreshold <= 0 {
		c.SummarizeThreshold = DefaultSummarizeThreshold
	}
	if c.MaxContextMessages <= 0 {
		c.MaxContextMessages = DefaultMaxContextMessages
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = DefaultMaxContextTokens
	}
	c.Logger = logging.OrNoop(c.Logger)
	return nil
}
