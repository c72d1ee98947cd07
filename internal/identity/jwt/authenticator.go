// Package jwt implements identity.Authenticator with HS256-signed JSON Web Tokens.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/business-cards/internal/domain"
	"github.com/bissquit/business-cards/internal/identity"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenDuration is the fixed validity window of a session token.
	TokenDuration = 7 * 24 * time.Hour
	// Issuer is written to and required in every token.
	Issuer = "business-cards"
)

// Config contains JWT authenticator settings.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

// Authenticator signs and verifies stateless session tokens.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// NewAuthenticator creates an authenticator. The secret is required.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is required")
	}

	duration := cfg.TokenDuration
	if duration <= 0 {
		duration = TokenDuration
	}

	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: duration,
		now:      time.Now,
	}, nil
}

// GenerateToken mints a token bound to the user's ID.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (string, error) {
	now := a.now()
	claims := gojwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   user.ID,
		Issuer:    Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(a.duration)),
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, issuer and expiry, and returns the bound user ID.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", identity.ErrInvalidToken
	}

	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(Issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)

	var claims gojwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*gojwt.Token) (interface{}, error) {
		return a.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", identity.ErrInvalidToken)
	}

	return claims.Subject, nil
}

// Type returns the authenticator kind.
func (a *Authenticator) Type() string {
	return "jwt"
}
