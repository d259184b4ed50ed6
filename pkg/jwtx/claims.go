package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds embedded in the "kind" claim. Access tokens authenticate
// requests and connections; refresh tokens only mint new pairs.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Default token TTL constants. These provide sensible security defaults
// but can be overridden per-service via configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived for security - typical range is 15m to 1h.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience - typical range is 7d to 30d.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the token claims used across the service. Keep changes
// additive to preserve compatibility with already-issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Kind distinguishes access from refresh tokens. A refresh token must
	// never pass as an access token even though both share a claim shape.
	Kind string `json:"kind"`

	// Username for the authenticated user, carried for display purposes so
	// connection handlers don't need a user lookup on every frame.
	Username string `json:"username,omitempty"`
}

// NewClaims builds minimally-correct claims for the given subject and kind.
func NewClaims(subject, username, kind, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:     kind,
		Username: username,
	}
}

// Expiry returns the embedded expiry instant, or the zero time when the
// claim is absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining reports how long the token stays valid from now. Zero or
// negative means already expired.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
