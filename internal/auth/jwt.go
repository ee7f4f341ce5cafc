// Package auth provides JWT token generation and validation.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE: what the token proves
// ────────────────────────────────────────────────────────────────────
// The ledger trusts one thing from the outside world: which principal is
// calling. A JWT carries that principal in its "sub" claim and is signed
// with HS256 using a secret only the server knows, so a tampered payload
// fails signature verification and the server can trust the claim
// without a database lookup on every request.
//
// The token says WHO is calling, never WHAT they may do. Owner-only
// checks happen inside the ledger against the configured owner.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims embedded in each token. The principal is the
// standard Subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Principal returns the authenticated caller named by the token.
func (c *Claims) Principal() string { return c.Subject }

// tokenDuration is how long a session token stays valid after being issued.
const tokenDuration = 72 * time.Hour

const issuer = "gigledger"

// GenerateToken creates a signed JWT for principal.
func GenerateToken(principal, secret string) (string, error) {
	return GenerateTokenWithExpiry(principal, secret, time.Now(), time.Now().Add(tokenDuration))
}

// GenerateTokenWithExpiry creates a token with explicit iat/exp values.
// Tests use it to produce already-expired tokens.
func GenerateTokenWithExpiry(principal, secret string, iat, exp time.Time) (string, error) {
	if principal == "" {
		return "", errors.New("principal is required")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(iat),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a JWT string and returns the embedded claims.
// It rejects tokens with:
//   - wrong or missing signature
//   - expired tokens (ExpiresAt in the past)
//   - a foreign issuer or an empty subject
//   - unexpected signing algorithm (algorithm confusion attack prevention)
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Guard against "alg:none" or RS256 tokens being passed to an HS256 server.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
