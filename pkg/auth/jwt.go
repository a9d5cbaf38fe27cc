package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors. Every verification failure collapses to ErrInvalidToken so
// callers cannot distinguish a bad signature from an expired or malformed
// token.
var (
	ErrInvalidToken = errors.New("auth: token is invalid or expired")
	ErrEmptySubject = errors.New("auth: token subject is empty")
)

// TokenCodec issues and verifies HS256-signed bearer tokens. Access and
// refresh tokens share the structure and differ only in TTL.
type TokenCodec struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenCodec returns a codec signing and verifying with the given
// symmetric secret. The parser is pinned to HS256; tokens declaring any
// other algorithm are rejected.
func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Issue signs a token carrying subject with the given lifetime. The claims
// are sub, iat and exp only.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded subject.
func (c *TokenCodec) Verify(tokenString string) (string, error) {
	token, err := c.parser.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
