// Package history is the best-effort facade over the conversation log.
// Failures are logged and never reach callers.
package history

import (
	"context"

	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/internal/store"
)

// Service appends to and reads from a LogStore on behalf of a session.
type Service struct {
	logs  store.LogStore
	limit int
}

// NewService wraps logs. limit is the default page size for Fetch.
func NewService(logs store.LogStore, limit int) *Service {
	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}
	return &Service{logs: logs, limit: limit}
}

// Append records msg for the session's user. Without a session it does nothing.
func (s *Service) Append(ctx context.Context, session *identity.Session, msg chat.Message) {
	if s == nil || s.logs == nil || !session.Valid() {
		return
	}

	if err := s.logs.AppendLogEntry(ctx, session.UserID, msg); err != nil {
		logger.SafeError("failed to append log entry", err, logger.Fields{
			"user_id":    session.UserID,
			"message_id": msg.ID,
			"sender":     string(msg.Sender),
		})
	}
}

// Fetch returns up to limit of the user's earliest entries, oldest first.
// limit <= 0 uses the service default. Errors yield an empty result.
func (s *Service) Fetch(ctx context.Context, session *identity.Session, limit int) []chat.LogEntry {
	if s == nil || s.logs == nil || !session.Valid() {
		return []chat.LogEntry{}
	}
	if limit <= 0 {
		limit = s.limit
	}

	entries, err := s.logs.FetchLogHistory(ctx, session.UserID, limit)
	if err != nil {
		logger.SafeError("failed to fetch log history", err, logger.Fields{"user_id": session.UserID})
		return []chat.LogEntry{}
	}
	if entries == nil {
		return []chat.LogEntry{}
	}
	return entries
}

// Messages strips the log metadata from entries.
func Messages(entries []chat.LogEntry) []chat.Message {
	out := make([]chat.Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}
