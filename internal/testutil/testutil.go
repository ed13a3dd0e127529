// Package testutil provides shared helpers for threadloom tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB wraps a PostgreSQL connection pool for testing.
type TestDB struct {
	Pool *pgxpool.Pool
}

// NewTestDB creates a test database connection from the DATABASE_URL env var.
// The test is skipped when DATABASE_URL is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	return &TestDB{Pool: pool}
}

// Close closes the database connection.
func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanTables truncates all threadloom tables for test isolation.
func (db *TestDB) CleanTables(ctx context.Context) error {
	tables := []string{
		"threadloom_usage",
		"threadloom_summaries",
		"threadloom_messages",
		"threadloom_threads",
	}

	for _, table := range tables {
		_, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return nil
}

// SetupTestThread creates a thread row and returns its id.
func (db *TestDB) SetupTestThread(ctx context.Context, t *testing.T) string {
	t.Helper()

	var threadID string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO threadloom_threads (id, user_id, title, system_prompt, current_model, message_count, status, created_at, updated_at)
		VALUES (gen_random_uuid(), 'test-user', 'test thread', 'You are a helpful assistant.', 'openai/gpt-4-turbo', 0, 'active', NOW(), NOW())
		RETURNING id
	`).Scan(&threadID)

	if err != nil {
		t.Fatalf("Failed to create test thread: %v", err)
	}

	return threadID
}

// RequireIntegration skips the test if not running integration tests.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
}
