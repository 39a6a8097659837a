package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stitchtalk/internal/domain/identity"
)

var ErrInvalidToken = errors.New("security: invalid token")

// TokenVerifier issues and validates the HS256 bearer tokens that admit
// realtime connections. The subject carries the user id, a custom claim
// carries the account kind.
type TokenVerifier struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

type tokenClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Issue signs a token for the given user.
func (v TokenVerifier) Issue(ref identity.Ref) (string, error) {
	if len(v.Secret) == 0 {
		return "", errors.New("security: signing secret required")
	}
	ttl := v.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := tokenClaims{
		Kind: string(ref.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref.ID,
			Issuer:    v.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.Secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the bound user.
func (v TokenVerifier) Verify(raw string) (identity.Ref, error) {
	if len(v.Secret) == 0 {
		return identity.Ref{}, errors.New("security: signing secret required")
	}
	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.Secret, nil
	})
	if err != nil {
		return identity.Ref{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return identity.Ref{}, ErrInvalidToken
	}
	kind, err := identity.ParseKind(claims.Kind)
	if err != nil {
		return identity.Ref{}, ErrInvalidToken
	}
	ref, err := identity.NewRef(claims.Subject, kind)
	if err != nil {
		return identity.Ref{}, ErrInvalidToken
	}
	return ref, nil
}
