package store

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// Memory keeps everything in process memory.
type Memory struct {
	mu    sync.RWMutex
	logs  map[string][]chat.LogEntry
	users map[string]User
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		logs:  make(map[string][]chat.LogEntry),
		users: make(map[string]User),
		now:   time.Now,
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) AppendLogEntry(_ context.Context, userID string, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs[userID] = append(m.logs[userID], chat.LogEntry{Message: msg, CreatedAt: m.now().UTC()})
	return nil
}

func (m *Memory) FetchLogHistory(_ context.Context, userID string, limit int) ([]chat.LogEntry, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[userID]
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]chat.LogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.Email]; exists {
		return ErrUserExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
