package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for tokens that are not compact JWTs.
var ErrNotJWT = errors.New("token is not a jwt")

// DefaultLeeway is subtracted from the expiry when deciding staleness, so a
// token about to expire in flight is refreshed first.
const DefaultLeeway = 30 * time.Second

// Claims are the registered claims read from an access token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect reads the registered claims of raw without verifying it.
func Inspect(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}

	registered := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, registered); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	out := &Claims{Subject: registered.Subject}
	if registered.IssuedAt != nil {
		out.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time
	}
	return out, nil
}

// Expired reports whether the claims expire before now plus leeway. Claims
// without an expiry never expire.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

// Stale reports whether raw is a JWT that has expired (with leeway). Opaque
// or unparsable tokens are never stale; the API decides for them.
func Stale(raw string, now time.Time, leeway time.Duration) bool {
	claims, err := Inspect(raw)
	if err != nil {
		return false
	}
	return claims.Expired(now, leeway)
}
