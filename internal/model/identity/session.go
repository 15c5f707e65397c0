package identity

import (
	"context"
	"time"
)

// Session is the authenticated identity handed to components that need it.
// It is created on sign-in, destroyed on sign-out and re-created on refresh.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session carries a user identifier.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != ""
}

type contextKey struct{}

// WithSession attaches the session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by WithSession, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || !s.Valid() {
		return nil, false
	}
	return s, true
}
