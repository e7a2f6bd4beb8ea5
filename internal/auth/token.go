// Package auth issues and verifies principal tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"matatu/internal/domain"
)

var (
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmptySecret is returned when the signing secret is blank.
	ErrEmptySecret = errors.New("jwt: empty secret key")
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	Role  string `json:"role"`
	Phone string `json:"phone"`
	jwtlib.RegisteredClaims
}

// TokenManager handles JWT creation and validation.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager signing with HS256.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &TokenManager{secret: []byte(s), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed access token for the user.
func (m *TokenManager) Issue(user *domain.User) (string, error) {
	if !user.Role.Valid() {
		return "", fmt.Errorf("invalid role: %s", user.Role)
	}

	now := m.now()
	claims := &Claims{
		Role:  string(user.Role),
		Phone: user.PhoneNumber,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(m.ttl)),
		},
	}

	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies the token and returns the principal it names. The role
// claim goes through domain.ParseRole like any other external role string.
func (m *TokenManager) Parse(token string) (domain.Principal, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok || claims.Subject == "" {
		return domain.Principal{}, ErrInvalidToken
	}

	return domain.Principal{
		UserID:      claims.Subject,
		Role:        role,
		PhoneNumber: claims.Phone,
	}, nil
}
