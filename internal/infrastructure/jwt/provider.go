package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "file-vault"

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs with a shared secret.
type Provider struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// Option customizes a Provider.
type Option func(*Provider)

// WithClock replaces the time source used for both signing and verification.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(secret []byte, expiry time.Duration, opts ...Option) (*Provider, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("jwt expiry must be positive, got %s", expiry)
	}
	p := &Provider{secret: secret, expiry: expiry, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Sign issues a token for the identity. It returns the token and its expiry.
func (p *Provider) Sign(identity domain.Identity) (string, time.Time, error) {
	now := p.now()
	exp := now.Add(p.expiry)
	claims := Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
