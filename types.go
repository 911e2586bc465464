package authclient

import (
	"fmt"
)

// Logger is the minimal logging surface the toolkit needs. Matches the
// printf-style loggers used across goliatone projects.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenValidator optionally verifies a cached token before the session
// trusts it. Implementations should return ErrTokenExpired for expired
// but otherwise valid tokens, and ErrTokenMalformed or ErrUnauthorized
// for tokens that must not be trusted at all.
type TokenValidator interface {
	Validate(tokenString string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHCLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
