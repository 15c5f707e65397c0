package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/mentor-relay/backend/internal/config"
	"github.com/zhouzirui/mentor-relay/backend/internal/store"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	tokens, err := NewTokenManager(config.AuthConfig{Secret: "test-secret", Issuer: "test", TTL: time.Hour})
	require.NoError(t, err)

	p := NewProvider(store.NewMemory(), tokens)
	p.cost = bcrypt.MinCost
	return p
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager(config.AuthConfig{})
	assert.Error(t, err)
}

func TestSignUpNormalizesEmailAndSignsIn(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	session, err := p.SignUp(ctx, "  Founder@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "founder@example.com", session.Email)
	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.TokenID)
	assert.True(t, session.ExpiresAt.After(session.IssuedAt))

	again, err := p.SignIn(ctx, "FOUNDER@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, again.UserID)
	assert.NotEqual(t, session.TokenID, again.TokenID)
}

func TestSignUpValidation(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.SignUp(ctx, "a@example.com", "12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = p.SignUp(ctx, "a@example.com", "123456")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "A@example.com", "abcdef")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.SignUp(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "missing@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	session, err := p.SignUp(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	authed, err := p.Authenticate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, authed.UserID)
	assert.Equal(t, session.TokenID, authed.TokenID)

	refreshed, err := p.Refresh(authed)
	require.NoError(t, err)
	assert.NotEqual(t, session.Token, refreshed.Token)

	_, err = p.Authenticate(session.Token)
	assert.ErrorIs(t, err, ErrRevokedToken, "old token revoked on refresh")

	current, err := p.Authenticate(refreshed.Token)
	require.NoError(t, err)

	require.NoError(t, p.SignOut(current))
	_, err = p.Authenticate(refreshed.Token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	_, err = p.Refresh(current)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestAuthenticateRejectsForeignAndExpiredTokens(t *testing.T) {
	p := newTestProvider(t)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "x",
		Subject:   "user-1",
		Issuer:    "test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenString, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = p.Authenticate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)

	p.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := p.tokens.Sign("user-1", "a@example.com")
	require.NoError(t, err)
	p.tokens.now = time.Now

	_, err = p.Authenticate(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSignOutRequiresSession(t *testing.T) {
	p := newTestProvider(t)
	assert.ErrorIs(t, p.SignOut(nil), ErrInvalidToken)
}
