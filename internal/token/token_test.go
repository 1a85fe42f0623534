package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestIsExpired(t *testing.T) {
	future := signedToken(t, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()})
	past := signedToken(t, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(-time.Hour).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "u-1"})

	cases := []struct {
		name    string
		token   string
		expired bool
	}{
		{"valid future token", future, false},
		{"past token", past, true},
		{"no exp claim", noExp, true},
		{"empty token", "", true},
		{"garbage", "not-a-token", true},
		{"malformed segments", "a.b.c", true},
		{"truncated payload", future[:len(future)/2], true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsExpired(tc.token); got != tc.expired {
				t.Errorf("IsExpired = %v, want %v", got, tc.expired)
			}
		})
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"sub": "u-1", "exp": exp.Unix()})

	got, err := ExpiresAt(tok)
	if err != nil {
		t.Fatalf("ExpiresAt failed: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expected expiry %v, got %v", exp, got)
	}
}

func TestExpiresAtMalformed(t *testing.T) {
	if _, err := ExpiresAt("nonsense"); err == nil {
		t.Error("expected error for malformed token")
	}
	if _, err := ExpiresAt(""); err == nil {
		t.Error("expected error for empty token")
	}
}
