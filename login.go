package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultAuthKey names both the token cookie and the response header
	// carrying the bearer credential.
	DefaultAuthKey = "authorization"

	// DefaultCookieTTLDays is the long-lived expiry used for the token
	// and user cookies. Staleness is governed by the token's own exp
	// claim, not the cookie expiry.
	DefaultCookieTTLDays = 365
)

// Provider discriminates login flows. Local logins authenticate with
// email/password; any other value is forwarded to the backend as the
// social_provider of a token exchange.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// LocalCredentials authenticates a first-party account.
type LocalCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (c LocalCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&c.Password,
			validation.Required,
		),
	)
}

// SocialCredentials authenticates with a token minted by a social
// provider. The provider name travels alongside it as social_provider.
type SocialCredentials struct {
	SocialToken    string `json:"social_token"`
	SocialProvider string `json:"social_provider,omitempty"`
}

// Validate will run validation rules
func (c SocialCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.SocialToken,
			validation.Required,
		),
	)
}

// LoginConfig describes one login attempt.
type LoginConfig struct {
	Provider Provider
	Local    *LocalCredentials
	Social   *SocialCredentials

	// APIURL is the login endpoint for this provider.
	APIURL string
	// DataKey is the body field under data holding the user object, and
	// the name of the cookie caching it.
	DataKey string
	// AuthKey is the response header and cookie name for the token.
	// Defaults to "authorization".
	AuthKey string

	HTTPClient *http.Client
	Store      CookieStore
	Logger     Logger
}

// Validate will run validation rules
func (c LoginConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.APIURL, validation.Required, is.RequestURL),
		validation.Field(&c.DataKey, validation.Required),
		validation.Field(&c.Provider, validation.Required),
	); err != nil {
		return err
	}

	if c.Provider == ProviderLocal {
		if c.Local == nil {
			return errors.New("local login requires credentials", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest)
		}
		return c.Local.Validate()
	}

	if c.Social == nil {
		return errors.New("social login requires a social token", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}
	return c.Social.Validate()
}

func (c LoginConfig) authKey() string {
	if c.AuthKey == "" {
		return DefaultAuthKey
	}
	return c.AuthKey
}

func (c LoginConfig) payload() any {
	if c.Provider == ProviderLocal {
		return c.Local
	}

	social := *c.Social
	social.SocialProvider = string(c.Provider)
	return social
}

// authResponse is the backend's login/profile envelope.
type authResponse struct {
	Data map[string]json.RawMessage `json:"data"`
}

// Login posts credentials to the configured endpoint and composes the
// created user with the bearer token extracted from the auth response
// header. A non-2xx status or a body missing the data key is a hard
// error: callers need to tell bad credentials apart from a network
// hiccup.
func Login(ctx context.Context, cfg LoginConfig) (*User, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(cfg.payload())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode login payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, ErrRequestFailed.Category, ErrRequestFailed.Message).
			WithTextCode(ErrRequestFailed.TextCode)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, ErrRequestFailed.Category, "failed to read login response").
			WithTextCode(ErrRequestFailed.TextCode)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logger.Info("Login rejected", "status", resp.StatusCode, "provider", cfg.Provider)
		return nil, ErrUnauthorized.WithMetadata(map[string]any{
			"provider": string(cfg.Provider),
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrRequestFailed.WithMetadata(map[string]any{
			"status":   resp.StatusCode,
			"provider": string(cfg.Provider),
		})
	}

	var envelope authResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}

	userRaw, ok := envelope.Data[cfg.DataKey]
	if !ok {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{
			"data_key": cfg.DataKey,
		})
	}

	user, err := decodeUser(string(userRaw))
	if err != nil {
		return nil, err
	}

	token := extractHeaderToken(resp.Header.Get(cfg.authKey()))
	if token == "" {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{
			"auth_key": cfg.authKey(),
		})
	}

	user.Token = token
	user.CacheID = uuid.NewString()

	if cfg.Store != nil {
		cfg.Store.Set(cfg.authKey(), token, DefaultCookieTTLDays)
		cfg.Store.Set(cfg.DataKey, string(userRaw), DefaultCookieTTLDays)
	}

	return user, nil
}

// extractHeaderToken returns the substring after the first space of a
// "<scheme> <token>" header value.
func extractHeaderToken(header string) string {
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
