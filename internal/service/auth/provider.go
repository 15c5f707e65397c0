// Package auth is the identity provider: account creation, sign-in and the
// session lifecycle.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/internal/store"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrRevokedToken       = errors.New("session has been signed out")
)

// Provider creates and ends sessions.
type Provider struct {
	users  store.UserStore
	tokens *TokenManager
	cost   int

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewProvider wires the account store and token manager.
func NewProvider(users store.UserStore, tokens *TokenManager) *Provider {
	return &Provider{
		users:   users,
		tokens:  tokens,
		cost:    bcrypt.DefaultCost,
		revoked: make(map[string]time.Time),
	}
}

// SignUp registers a new account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           chat.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.InfoWithFields("user signed up", logger.Fields{"user_id": user.ID})
	return p.issue(user.ID, user.Email)
}

// SignIn verifies credentials and opens a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := p.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	logger.InfoWithFields("user signed in", logger.Fields{"user_id": user.ID})
	return p.issue(user.ID, user.Email)
}

// SignOut destroys the session; its token is rejected afterwards.
func (p *Provider) SignOut(session *identity.Session) error {
	if !session.Valid() || session.TokenID == "" {
		return ErrInvalidToken
	}
	p.revoke(session.TokenID, session.ExpiresAt)
	logger.InfoWithFields("user signed out", logger.Fields{"user_id": session.UserID})
	return nil
}

// Refresh replaces session with a new one and revokes the old token.
func (p *Provider) Refresh(session *identity.Session) (*identity.Session, error) {
	if !session.Valid() || session.TokenID == "" {
		return nil, ErrInvalidToken
	}
	if p.isRevoked(session.TokenID) {
		return nil, ErrRevokedToken
	}

	next, err := p.issue(session.UserID, session.Email)
	if err != nil {
		return nil, err
	}
	p.revoke(session.TokenID, session.ExpiresAt)
	return next, nil
}

// Authenticate resolves a bearer token into its session.
func (p *Provider) Authenticate(token string) (*identity.Session, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		if isExpired(err) {
			logger.Log.Debugf("expired session token rejected")
		}
		return nil, err
	}
	if p.isRevoked(claims.ID) {
		return nil, ErrRevokedToken
	}

	return &identity.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Token:     token,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (p *Provider) issue(userID, email string) (*identity.Session, error) {
	token, claims, err := p.tokens.Sign(userID, email)
	if err != nil {
		return nil, err
	}
	return &identity.Session{
		UserID:    userID,
		Email:     email,
		Token:     token,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (p *Provider) revoke(tokenID string, expiresAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, id)
		}
	}
	p.revoked[tokenID] = expiresAt
}

func (p *Provider) isRevoked(tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.revoked[tokenID]
	return ok
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
