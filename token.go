package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeExpiry extracts the expiry claim (seconds since epoch) from a
// JWT without verifying its signature. Verification happens server side
// on every request; the client only needs the claim to schedule
// refreshes. A token without an exp claim yields 0.
func DecodeExpiry(tokenString string) (int64, error) {
	parser := jwt.NewParser()

	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return 0, ErrTokenMalformed.WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return 0, ErrTokenMalformed.WithMetadata(map[string]any{
			"claim": "exp",
		})
	}

	if exp == nil {
		return 0, nil
	}

	return exp.Unix(), nil
}

// TokenClock answers token staleness questions against wall clock time.
type TokenClock struct {
	now func() time.Time
}

// TokenClockOption customizes clock construction.
type TokenClockOption func(*TokenClock)

// WithTokenClockNow injects a custom time source (useful for tests).
func WithTokenClockNow(now func() time.Time) TokenClockOption {
	return func(c *TokenClock) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenClock returns a clock backed by time.Now unless overridden.
func NewTokenClock(opts ...TokenClockOption) *TokenClock {
	c := &TokenClock{now: time.Now}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// HasExpired reports whether the expiry timestamp is strictly in the
// past. An unset expiry (0) reads as not expired: "no expiry known" is
// not a denial signal, callers must not rely on it for security checks.
func (c *TokenClock) HasExpired(expiryEpochSeconds int64) bool {
	if expiryEpochSeconds == 0 {
		return false
	}
	return expiryEpochSeconds < c.now().Unix()
}

// HasExpired is the package-level variant of TokenClock.HasExpired
// using wall clock time.
func HasExpired(expiryEpochSeconds int64) bool {
	if expiryEpochSeconds == 0 {
		return false
	}
	return expiryEpochSeconds < time.Now().Unix()
}
