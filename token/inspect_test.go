package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestInspectReadsRegisteredClaims(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	raw := signed(t, jwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
	})

	claims, err := Inspect(raw)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Subject != "u1" || !claims.ExpiresAt.Equal(now.Add(15*time.Minute)) || !claims.IssuedAt.Equal(now) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestInspectRejectsOpaqueTokens(t *testing.T) {
	for _, raw := range []string{"", "opaque-token", "a.b", "a.b.c"} {
		if _, err := Inspect(raw); !errors.Is(err, ErrNotJWT) {
			t.Fatalf("%q: expected ErrNotJWT, got %v", raw, err)
		}
	}
}

func TestStale(t *testing.T) {
	now := time.Now()
	expired := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
	almost := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Second))})
	fresh := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
	noExp := signed(t, jwt.RegisteredClaims{Subject: "u1"})

	if !Stale(expired, now, 0) {
		t.Fatal("expired token should be stale")
	}
	if !Stale(almost, now, DefaultLeeway) {
		t.Fatal("token inside leeway should be stale")
	}
	if Stale(fresh, now, DefaultLeeway) {
		t.Fatal("fresh token should not be stale")
	}
	if Stale(noExp, now, DefaultLeeway) {
		t.Fatal("token without exp should not be stale")
	}
	if Stale("opaque", now, DefaultLeeway) {
		t.Fatal("opaque token should not be stale")
	}
}
