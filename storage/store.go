// Package storage defines the persistence boundary for threads, messages,
// summaries and usage records, with PostgreSQL and in-memory implementations.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrThreadNotFound is returned when a thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")
)

// Thread status values.
const (
	ThreadStatusActive   = "active"
	ThreadStatusArchived = "archived"
	ThreadStatusDeleted  = "deleted"
)

// Operation types recorded with usage events.
const (
	OperationMessage       = "message"
	OperationSummarization = "summarization"
	OperationCollaboration = "collaboration"
)

// Thread is a persistent conversation with its own system prompt, default
// model and message history.
type Thread struct {
	ID           string    `json:"thread_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title,omitempty"`
	SystemPrompt string    `json:"system_prompt"`
	CurrentModel string    `json:"current_model"`
	MessageCount int       `json:"message_count"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single stored conversation message. Messages are immutable
// once created and ordered by CreatedAt within a thread.
type Message struct {
	ID        string    `json:"message_id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"` // empty means the thread default was used
	Tokens    int       `json:"tokens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a compressed stand-in for a covered span of prior messages.
// Only the most recent summary participates in context assembly; older ones
// are retained for audit.
type Summary struct {
	ID                  string    `json:"summary_id"`
	ThreadID            string    `json:"thread_id"`
	SummaryText         string    `json:"summary_text"`
	CoveredMessageCount int       `json:"covered_message_count"`
	CoveredMessageIDs   []string  `json:"covered_message_ids,omitempty"`
	TriggerReason       string    `json:"trigger_reason"`
	Model               string    `json:"model,omitempty"`
	Tokens              int       `json:"tokens,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// UsageRecord captures the token usage and cost of one LLM call.
type UsageRecord struct {
	ID              string    `json:"usage_id"`
	ThreadID        string    `json:"thread_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	CollaborationID string    `json:"collaboration_id,omitempty"`
	Model           string    `json:"model"`
	InputTokens     int       `json:"input_tokens"`
	OutputTokens    int       `json:"output_tokens"`
	TotalTokens     int       `json:"total_tokens"`
	CostUSD         float64   `json:"cost_usd"`
	OperationType   string    `json:"operation_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// ThreadUpdate describes a partial thread update. Nil fields are unchanged.
type ThreadUpdate struct {
	Title        *string
	CurrentModel *string
}

// Store is the persistence interface consumed by the orchestration core.
// Every write is individually atomic: a summary or message either lands
// completely or not at all, even when the background summarizer interleaves
// with the foreground message path.
type Store interface {
	// Thread operations
	CreateThread(ctx context.Context, thread *Thread) (string, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	UpdateThread(ctx context.Context, threadID string, update ThreadUpdate) (*Thread, error)
	ListThreads(ctx context.Context, userID string, status string, limit, offset int) ([]*Thread, int, error)
	IncrementMessageCount(ctx context.Context, threadID string) error

	// Message operations
	AppendMessage(ctx context.Context, msg *Message) (string, error)
	// GetRecentMessages returns messages in ascending creation order. With a
	// non-nil after, it returns up to limit messages created strictly after
	// that instant. With a nil after, it returns the limit most recent
	// messages (still ascending).
	GetRecentMessages(ctx context.Context, threadID string, after *time.Time, limit int) ([]*Message, error)
	GetMessages(ctx context.Context, threadID string, limit, offset int) ([]*Message, int, error)

	// Summary operations
	SaveSummary(ctx context.Context, summary *Summary) (string, error)
	// GetLatestSummary returns the most recent summary, or (nil, nil) when
	// the thread has none.
	GetLatestSummary(ctx context.Context, threadID string) (*Summary, error)
	ListSummaries(ctx context.Context, threadID string, limit int) ([]*Summary, error)

	// Usage operations
	SaveUsage(ctx context.Context, record *UsageRecord) (string, error)
	ListUsage(ctx context.Context, threadID string, limit int) ([]*UsageRecord, error)
}
