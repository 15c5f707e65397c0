package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zhouzirui/mentor-relay/backend/internal/config"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// Claims are the registered JWT claims plus the account email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager from the auth configuration.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "mentor-relay"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &TokenManager{
		secret: []byte(cfg.Secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Sign issues a token for the user with a fresh token id.
func (m *TokenManager) Sign(userID, email string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        chat.NewID(),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer and expiry.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing sub claim", ErrInvalidToken)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token missing jti claim", ErrInvalidToken)
	}
	return claims, nil
}

func isExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
