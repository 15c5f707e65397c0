// Package store persists the per-user conversation log and user accounts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// DefaultHistoryLimit caps FetchLogHistory when the caller passes no limit.
const DefaultHistoryLimit = 100

// LogStore is the append-only conversation log keyed by user id.
type LogStore interface {
	AppendLogEntry(ctx context.Context, userID string, msg chat.Message) error
	// FetchLogHistory returns the first limit entries, oldest first.
	FetchLogHistory(ctx context.Context, userID string, limit int) ([]chat.LogEntry, error)
}

// User is a registered account.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// UserStore keeps accounts unique by email.
type UserStore interface {
	CreateUser(ctx context.Context, user User) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

// Store is a backend serving both the log and the accounts.
type Store interface {
	LogStore
	UserStore
	Name() string
	Close(ctx context.Context) error
}

// Remote reports whether s lives outside the process.
func Remote(s Store) bool {
	_, ok := s.(*Mongo)
	return ok
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
