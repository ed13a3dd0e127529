package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implements Store with in-memory maps. It backs unit tests and local
// development when PostgreSQL is not available.
type Memory struct {
	mu        sync.RWMutex
	threads   map[string]*Thread
	messages  map[string][]*Message // keyed by thread id, append order
	summaries map[string][]*Summary // keyed by thread id, append order
	usage     map[string][]*UsageRecord
	seq       map[string]int // per-message insertion order for stable sorts
	nextSeq   int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		threads:   make(map[string]*Thread),
		messages:  make(map[string][]*Message),
		summaries: make(map[string][]*Summary),
		usage:     make(map[string][]*UsageRecord),
		seq:       make(map[string]int),
	}
}

// CreateThread stores a new thread and returns its id.
func (m *Memory) CreateThread(ctx context.Context, thread *Thread) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *thread
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = ThreadStatusActive
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = stored.CreatedAt

	m.threads[stored.ID] = &stored
	return stored.ID, nil
}

// GetThread returns a copy of the thread, or ErrThreadNotFound.
func (m *Memory) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	thread, ok := m.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	copied := *thread
	return &copied, nil
}

// UpdateThread applies a partial update and returns the updated thread.
func (m *Memory) UpdateThread(ctx context.Context, threadID string, update ThreadUpdate) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread, ok := m.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	if update.Title != nil {
		thread.Title = *update.Title
	}
	if update.CurrentModel != nil {
		thread.CurrentModel = *update.CurrentModel
	}
	thread.UpdatedAt = time.Now().UTC()

	copied := *thread
	return &copied, nil
}

// ListThreads returns threads for a user (or all users when userID is empty)
// ordered by most recently updated, with the total count before pagination.
func (m *Memory) ListThreads(ctx context.Context, userID string, status string, limit, offset int) ([]*Thread, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Thread
	for _, thread := range m.threads {
		if status != "" && thread.Status != status {
			continue
		}
		if userID != "" && thread.UserID != userID {
			continue
		}
		copied := *thread
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// IncrementMessageCount bumps the thread's message count by one.
func (m *Memory) IncrementMessageCount(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread, ok := m.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	thread.MessageCount++
	thread.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendMessage stores a message and returns its id.
func (m *Memory) AppendMessage(ctx context.Context, msg *Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[msg.ThreadID]; !ok {
		return "", ErrThreadNotFound
	}

	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.nextSeq++
	m.seq[stored.ID] = m.nextSeq
	m.messages[msg.ThreadID] = append(m.messages[msg.ThreadID], &stored)
	return stored.ID, nil
}

// GetRecentMessages implements the Store contract.
func (m *Memory) GetRecentMessages(ctx context.Context, threadID string, after *time.Time, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sortedMessages(threadID)

	if after != nil {
		var result []*Message
		for _, msg := range all {
			if msg.CreatedAt.After(*after) {
				result = append(result, msg)
				if limit > 0 && len(result) == limit {
					break
				}
			}
		}
		return result, nil
	}

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// GetMessages returns a page of the thread's full history in ascending order
// along with the total message count.
func (m *Memory) GetMessages(ctx context.Context, threadID string, limit, offset int) ([]*Message, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sortedMessages(threadID)
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// SaveSummary stores a summary record atomically and returns its id.
func (m *Memory) SaveSummary(ctx context.Context, summary *Summary) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[summary.ThreadID]; !ok {
		return "", ErrThreadNotFound
	}

	stored := *summary
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.CoveredMessageIDs = append([]string(nil), summary.CoveredMessageIDs...)
	m.summaries[summary.ThreadID] = append(m.summaries[summary.ThreadID], &stored)
	return stored.ID, nil
}

// GetLatestSummary returns the most recent summary, or (nil, nil).
func (m *Memory) GetLatestSummary(ctx context.Context, threadID string) (*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := m.summaries[threadID]
	if len(summaries) == 0 {
		return nil, nil
	}
	latest := summaries[0]
	for _, s := range summaries[1:] {
		if s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	copied := *latest
	return &copied, nil
}

// ListSummaries returns summaries newest first.
func (m *Memory) ListSummaries(ctx context.Context, threadID string, limit int) ([]*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := append([]*Summary(nil), m.summaries[threadID]...)
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	result := make([]*Summary, len(summaries))
	for i, s := range summaries {
		copied := *s
		result[i] = &copied
	}
	return result, nil
}

// SaveUsage stores a usage record and returns its id.
func (m *Memory) SaveUsage(ctx context.Context, record *UsageRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	key := record.ThreadID
	m.usage[key] = append(m.usage[key], &stored)
	return stored.ID, nil
}

// ListUsage returns usage records for a thread, newest first.
func (m *Memory) ListUsage(ctx context.Context, threadID string, limit int) ([]*UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := append([]*UsageRecord(nil), m.usage[threadID]...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	result := make([]*UsageRecord, len(records))
	for i, r := range records {
		copied := *r
		result[i] = &copied
	}
	return result, nil
}

// sortedMessages returns copies of a thread's messages in ascending creation
// order, with insertion order breaking timestamp ties.
func (m *Memory) sortedMessages(threadID string) []*Message {
	msgs := m.messages[threadID]
	sorted := make([]*Message, len(msgs))
	for i, msg := range msgs {
		copied := *msg
		sorted[i] = &copied
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return m.seq[sorted[i].ID] < m.seq[sorted[j].ID]
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}
