// Package cookiesign converts opaque backend tokens into tamper-evident
// cookie values. The value is wrapped in an HS256-signed JWT with a 24h
// expiry matching the cookie max-age; the token itself stays opaque and is
// never interpreted.
package cookiesign

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieMaxAge is the fixed lifetime of session cookies set by the proxy.
const CookieMaxAge = 24 * time.Hour

// Signer signs and unsigns cookie values with a per-organization HMAC key.
type Signer struct {
	key []byte
	now func() time.Time
}

// valueClaims wraps the cookie value in JWT claims
type valueClaims struct {
	Value string `json:"value"`
	jwt.RegisteredClaims
}

// New creates a Signer for the given signing key.
func New(key []byte) *Signer {
	return &Signer{key: key, now: time.Now}
}

// Sign wraps value into a signed cookie payload.
func (s *Signer) Sign(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("cannot sign empty value")
	}

	now := s.now()
	claims := valueClaims{
		Value: value,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CookieMaxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie value: %w", err)
	}
	return signed, nil
}

// Unsign verifies the signature and expiry and returns the original value.
func (s *Signer) Unsign(signed string) (string, error) {
	token, err := jwt.ParseWithClaims(signed, &valueClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return "", fmt.Errorf("invalid cookie value: %w", err)
	}

	claims, ok := token.Claims.(*valueClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid cookie claims")
	}
	return claims.Value, nil
}
