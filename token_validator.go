package authclient

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// RemoteTokenValidator verifies token signatures against a JWK Set
// fetched from the issuing server. The key set refreshes in the
// background for the lifetime of the validator.
type RemoteTokenValidator struct {
	jwks   *keyfunc.JWKS
	logger Logger
}

type remoteValidatorConfig struct {
	refreshInterval time.Duration
	logger          Logger
}

// RemoteValidatorOption customizes validator construction.
type RemoteValidatorOption func(*remoteValidatorConfig)

// WithJWKSRefreshInterval overrides the background refresh cadence.
func WithJWKSRefreshInterval(interval time.Duration) RemoteValidatorOption {
	return func(c *remoteValidatorConfig) {
		if interval > 0 {
			c.refreshInterval = interval
		}
	}
}

// WithValidatorLogger sets the validator's logger.
func WithValidatorLogger(logger Logger) RemoteValidatorOption {
	return func(c *remoteValidatorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRemoteTokenValidator fetches the JWK Set at jwkSetURL and keeps it
// refreshed. Refresh failures after the initial fetch are logged and
// the previous key set stays in use.
func NewRemoteTokenValidator(jwkSetURL string, opts ...RemoteValidatorOption) (*RemoteTokenValidator, error) {
	cfg := &remoteValidatorConfig{
		refreshInterval: time.Hour,
		logger:          &defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	jwks, err := keyfunc.Get(jwkSetURL, keyfunc.Options{
		RefreshInterval: cfg.refreshInterval,
		RefreshErrorHandler: func(err error) {
			cfg.logger.Warn("jwk set refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch JWK Set").
			WithTextCode(TextCodeRequestFailed).
			WithMetadata(map[string]any{"url": jwkSetURL})
	}

	return &RemoteTokenValidator{
		jwks:   jwks,
		logger: cfg.logger,
	}, nil
}

// Validate checks the token's signature and registered claims against
// the remote key set.
func (v *RemoteTokenValidator) Validate(tokenString string) error {
	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if !token.Valid {
		return ErrTokenMalformed
	}

	return nil
}

// Close stops the background key refresh.
func (v *RemoteTokenValidator) Close() {
	v.jwks.EndBackground()
}
