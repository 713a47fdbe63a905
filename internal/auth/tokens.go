// Package auth issues and validates the bearer tokens that guard the
// mutating relay routes.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer = "userrelay"

	// RoleOperator may trigger execute and clear.
	RoleOperator = "operator"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("token secret is not configured")
)

type Claims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims grant role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (tg *TokenGenerator) GenerateAccessToken(subject string, roles []string) (string, error) {
	if len(tg.secret) == 0 {
		return "", ErrNoSecret
	}
	now := tg.now()
	claims := Claims{
		Name:  subject,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

func (tg *TokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	if len(tg.secret) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(tg.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
