package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims defines the JWT claims structure. The user id travels in "sub".
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenManager issues and validates signed session tokens.
type TokenManager struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a TokenManager signing with HS256.
func NewTokenManager(secret []byte, lifetime time.Duration, issuer string, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", lifetime)
	}
	m := &TokenManager{
		secret:   secret,
		lifetime: lifetime,
		issuer:   issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Lifetime returns how long issued tokens stay valid.
func (m *TokenManager) Lifetime() time.Duration {
	return m.lifetime
}

// Issue creates a signed token for user and returns it with its expiry.
func (m *TokenManager) Issue(user models.User) (string, time.Time, error) {
	// NumericDate carries whole seconds; truncate so expiresAt matches the claim.
	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.lifetime)

	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates tokenStr and returns its claims. Expired tokens yield
// ErrExpiredToken; every other failure yields ErrInvalidToken.
func (m *TokenManager) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
