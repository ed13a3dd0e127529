package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store using PostgreSQL with pgx.
//
// Expected schema:
//
//	threadloom_threads   (id, user_id, title, system_prompt, current_model,
//	                      message_count, status, created_at, updated_at)
//	threadloom_messages  (id, thread_id, role, content, model, tokens, created_at)
//	threadloom_summaries (id, thread_id, summary_text, covered_message_count,
//	                      covered_message_ids TEXT[], trigger_reason, model,
//	                      tokens, created_at)
//	threadloom_usage     (id, thread_id, user_id, collaboration_id, model,
//	                      input_tokens, output_tokens, total_tokens, cost_usd,
//	                      operation_type, created_at)
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// CreateThread inserts a new thread and returns its id.
func (s *Postgres) CreateThread(ctx context.Context, thread *Thread) (string, error) {
	if thread.SystemPrompt == "" {
		return "", fmt.Errorf("system_prompt is required")
	}
	if thread.CurrentModel == "" {
		return "", fmt.Errorf("current_model is required")
	}

	threadID := thread.ID
	if threadID == "" {
		threadID = uuid.New().String()
	}
	status := thread.Status
	if status == "" {
		status = ThreadStatusActive
	}

	query := `
		INSERT INTO threadloom_threads (id, user_id, title, system_prompt, current_model, message_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, NOW(), NOW())
	`
	_, err := s.pool.Exec(ctx, query, threadID, thread.UserID, thread.Title, thread.SystemPrompt, thread.CurrentModel, status)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return threadID, nil
}

// GetThread retrieves a thread by id.
func (s *Postgres) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	query := `
		SELECT id, user_id, COALESCE(title, ''), system_prompt, current_model, message_count, status, created_at, updated_at
		FROM threadloom_threads
		WHERE id = $1
	`
	var thread Thread
	err := s.pool.QueryRow(ctx, query, threadID).Scan(
		&thread.ID,
		&thread.UserID,
		&thread.Title,
		&thread.SystemPrompt,
		&thread.CurrentModel,
		&thread.MessageCount,
		&thread.Status,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &thread, nil
}

// UpdateThread applies a partial update and returns the updated thread.
func (s *Postgres) UpdateThread(ctx context.Context, threadID string, update ThreadUpdate) (*Thread, error) {
	query := `
		UPDATE threadloom_threads
		SET title = COALESCE($2, title),
		    current_model = COALESCE($3, current_model),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, threadID, update.Title, update.CurrentModel)
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrThreadNotFound
	}
	return s.GetThread(ctx, threadID)
}

// ListThreads returns threads ordered by most recently updated, with the
// total count before pagination.
func (s *Postgres) ListThreads(ctx context.Context, userID string, status string, limit, offset int) ([]*Thread, int, error) {
	if status == "" {
		status = ThreadStatusActive
	}

	var total int
	countQuery := `
		SELECT COUNT(*) FROM threadloom_threads
		WHERE status = $1 AND ($2 = '' OR user_id = $2)
	`
	if err := s.pool.QueryRow(ctx, countQuery, status, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count threads: %w", err)
	}

	query := `
		SELECT id, user_id, COALESCE(title, ''), system_prompt, current_model, message_count, status, created_at, updated_at
		FROM threadloom_threads
		WHERE status = $1 AND ($2 = '' OR user_id = $2)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.pool.Query(ctx, query, status, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var thread Thread
		err := rows.Scan(
			&thread.ID,
			&thread.UserID,
			&thread.Title,
			&thread.SystemPrompt,
			&thread.CurrentModel,
			&thread.MessageCount,
			&thread.Status,
			&thread.CreatedAt,
			&thread.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, &thread)
	}
	return threads, total, rows.Err()
}

// IncrementMessageCount bumps the thread's message count by one.
func (s *Postgres) IncrementMessageCount(ctx context.Context, threadID string) error {
	query := `
		UPDATE threadloom_threads
		SET message_count = message_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, threadID)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// AppendMessage inserts a message and returns its id.
func (s *Postgres) AppendMessage(ctx context.Context, msg *Message) (string, error) {
	messageID := msg.ID
	if messageID == "" {
		messageID = uuid.New().String()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO threadloom_messages (id, thread_id, role, content, model, tokens, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`
	_, err := s.pool.Exec(ctx, query, messageID, msg.ThreadID, msg.Role, msg.Content, msg.Model, msg.Tokens, createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}
	return messageID, nil
}

// GetRecentMessages implements the Store contract.
func (s *Postgres) GetRecentMessages(ctx context.Context, threadID string, after *time.Time, limit int) ([]*Message, error) {
	var rows pgx.Rows
	var err error

	if after != nil {
		query := `
			SELECT id, thread_id, role, content, COALESCE(model, ''), COALESCE(tokens, 0), created_at
			FROM threadloom_messages
			WHERE thread_id = $1 AND created_at > $2
			ORDER BY created_at ASC
			LIMIT $3
		`
		rows, err = s.pool.Query(ctx, query, threadID, *after, limit)
	} else {
		// Most recent N, re-sorted ascending by the outer query.
		query := `
			SELECT id, thread_id, role, content, model, tokens, created_at FROM (
				SELECT id, thread_id, role, content, COALESCE(model, '') AS model, COALESCE(tokens, 0) AS tokens, created_at
				FROM threadloom_messages
				WHERE thread_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC
		`
		rows, err = s.pool.Query(ctx, query, threadID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetMessages returns a page of the thread's full history in ascending order
// along with the total message count.
func (s *Postgres) GetMessages(ctx context.Context, threadID string, limit, offset int) ([]*Message, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM threadloom_messages WHERE thread_id = $1`
	if err := s.pool.QueryRow(ctx, countQuery, threadID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `
		SELECT id, thread_id, role, content, COALESCE(model, ''), COALESCE(tokens, 0), created_at
		FROM threadloom_messages
		WHERE thread_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, threadID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// SaveSummary inserts a summary record in a single statement.
func (s *Postgres) SaveSummary(ctx context.Context, summary *Summary) (string, error) {
	summaryID := summary.ID
	if summaryID == "" {
		summaryID = uuid.New().String()
	}

	query := `
		INSERT INTO threadloom_summaries (id, thread_id, summary_text, covered_message_count, covered_message_ids, trigger_reason, model, tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW())
	`
	_, err := s.pool.Exec(ctx, query, summaryID, summary.ThreadID, summary.SummaryText,
		summary.CoveredMessageCount, summary.CoveredMessageIDs, summary.TriggerReason,
		summary.Model, summary.Tokens)
	if err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}
	return summaryID, nil
}

// GetLatestSummary returns the most recent summary, or (nil, nil).
func (s *Postgres) GetLatestSummary(ctx context.Context, threadID string) (*Summary, error) {
	query := `
		SELECT id, thread_id, summary_text, covered_message_count, covered_message_ids, trigger_reason, COALESCE(model, ''), COALESCE(tokens, 0), created_at
		FROM threadloom_summaries
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var summary Summary
	err := s.pool.QueryRow(ctx, query, threadID).Scan(
		&summary.ID,
		&summary.ThreadID,
		&summary.SummaryText,
		&summary.CoveredMessageCount,
		&summary.CoveredMessageIDs,
		&summary.TriggerReason,
		&summary.Model,
		&summary.Tokens,
		&summary.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest summary: %w", err)
	}
	return &summary, nil
}

// ListSummaries returns summaries newest first.
func (s *Postgres) ListSummaries(ctx context.Context, threadID string, limit int) ([]*Summary, error) {
	query := `
		SELECT id, thread_id, summary_text, covered_message_count, covered_message_ids, trigger_reason, COALESCE(model, ''), COALESCE(tokens, 0), created_at
		FROM threadloom_summaries
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		var summary Summary
		err := rows.Scan(
			&summary.ID,
			&summary.ThreadID,
			&summary.SummaryText,
			&summary.CoveredMessageCount,
			&summary.CoveredMessageIDs,
			&summary.TriggerReason,
			&summary.Model,
			&summary.Tokens,
			&summary.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

// SaveUsage inserts a usage record and returns its id.
func (s *Postgres) SaveUsage(ctx context.Context, record *UsageRecord) (string, error) {
	usageID := record.ID
	if usageID == "" {
		usageID = uuid.New().String()
	}

	query := `
		INSERT INTO threadloom_usage (id, thread_id, user_id, collaboration_id, model, input_tokens, output_tokens, total_tokens, cost_usd, operation_type, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, NOW())
	`
	_, err := s.pool.Exec(ctx, query, usageID, record.ThreadID, record.UserID, record.CollaborationID,
		record.Model, record.InputTokens, record.OutputTokens, record.TotalTokens,
		record.CostUSD, record.OperationType)
	if err != nil {
		return "", fmt.Errorf("failed to save usage record: %w", err)
	}
	return usageID, nil
}

// ListUsage returns usage records for a thread, newest first.
func (s *Postgres) ListUsage(ctx context.Context, threadID string, limit int) ([]*UsageRecord, error) {
	query := `
		SELECT id, COALESCE(thread_id, ''), COALESCE(user_id, ''), COALESCE(collaboration_id, ''), model, input_tokens, output_tokens, total_tokens, cost_usd, operation_type, created_at
		FROM threadloom_usage
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*UsageRecord
	for rows.Next() {
		var record UsageRecord
		err := rows.Scan(
			&record.ID,
			&record.ThreadID,
			&record.UserID,
			&record.CollaborationID,
			&record.Model,
			&record.InputTokens,
			&record.OutputTokens,
			&record.TotalTokens,
			&record.CostUSD,
			&record.OperationType,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		var msg Message
		err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.Role,
			&msg.Content,
			&msg.Model,
			&msg.Tokens,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
