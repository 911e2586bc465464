package authclient

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized      = "auth_client_unauthorized"
	TextCodeMalformedResponse = "auth_client_malformed_response"
	TextCodeRequestFailed     = "auth_client_request_failed"
	TextCodeTokenExpired      = "auth_client_token_expired"
	TextCodeTokenMalformed    = "auth_client_token_malformed"
	TextCodeSessionClosed     = "auth_client_session_closed"
	TextCodeSessionRequired   = "auth_client_session_required"
	TextCodeInvalidTransition = "auth_client_invalid_status_transition"
)

// ErrUnauthorized is returned when the backend rejects the stored or
// submitted credentials with a 401. It is the destructive failure:
// stored credentials are purged when it surfaces.
var ErrUnauthorized = errors.New("backend rejected credentials", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrMalformedResponse is returned when a login or profile response is
// missing the expected data key or auth header. Surfaced to the caller,
// never silently absorbed.
var ErrMalformedResponse = errors.New("response missing expected payload", errors.CategoryBadInput).
	WithTextCode(TextCodeMalformedResponse).
	WithCode(errors.CodeBadRequest)

// ErrRequestFailed wraps transport-layer failures. Transient: stored
// credentials are left untouched and the next staleness check retries.
var ErrRequestFailed = errors.New("auth request failed", errors.CategoryInternal).
	WithTextCode(TextCodeRequestFailed).
	WithCode(errors.CodeInternal)

// ErrTokenExpired is returned when a token's expiry claim is in the past.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be decoded.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrSessionClosed is returned when an operation is invoked on a closed
// session.
var ErrSessionClosed = errors.New("session is closed", errors.CategoryConflict).
	WithTextCode(TextCodeSessionClosed).
	WithCode(errors.CodeConflict)

// ErrSessionRequired is returned when a guard or helper is constructed
// without a session. This is a programmer error and fails loudly rather
// than degrading to a default.
var ErrSessionRequired = errors.New("session required", errors.CategoryValidation).
	WithTextCode(TextCodeSessionRequired).
	WithCode(errors.CodeBadRequest)

// ErrInvalidStatusTransition is returned when a requested status change
// is not allowed by the session state machine.
var ErrInvalidStatusTransition = errors.New("invalid session status transition", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// IsUnauthorizedError will check for 401-backed failures.
func IsUnauthorizedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTokenExpired) {
		return true
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Code == errors.CodeUnauthorized
	}

	return false
}

// IsMalformedResponseError will check for responses missing the
// configured data key or auth header.
func IsMalformedResponseError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrMalformedResponse)
}
