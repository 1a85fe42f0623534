// Package token decides whether a stored access token is still usable by
// inspecting its embedded expiry claim. It never verifies signatures; the
// server is the authority on token validity, this layer only avoids sending
// tokens it already knows are dead.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errNoExpiry = errors.New("token has no expiry claim")

// parser decodes without verifying; claim validation is done by hand so a
// malformed token maps to "expired" instead of an error.
var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// IsExpired reports whether the token's exp claim is in the past. It fails
// closed: an empty, malformed, or claimless token is treated as expired.
func IsExpired(tok string) bool {
	exp, err := ExpiresAt(tok)
	if err != nil {
		return true
	}
	return !exp.After(time.Now())
}

// ExpiresAt returns the token's expiry time. It returns an error when the
// token cannot be decoded or carries no exp claim.
func ExpiresAt(tok string) (time.Time, error) {
	if tok == "" {
		return time.Time{}, errors.New("empty token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok, claims); err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errNoExpiry
	}
	return exp.Time, nil
}
