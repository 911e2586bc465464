package authclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
)

// HeaderTokenRefresh is the hint header telling the backend the call is
// a silent token refresh rather than a plain profile read.
const HeaderTokenRefresh = "Token-Refresh"

// RefreshOutcome classifies the result of a profile refresh attempt.
type RefreshOutcome int

const (
	// RefreshOutcomeUpdated means the backend answered and the token
	// cookie was renewed (the user too, when the body carried one).
	RefreshOutcomeUpdated RefreshOutcome = iota
	// RefreshOutcomeUnauthenticated means the backend answered 401 and
	// both cookies were purged.
	RefreshOutcomeUnauthenticated
	// RefreshOutcomeRetry means a transient failure: nothing was
	// mutated, the next staleness check retries.
	RefreshOutcomeRetry
)

// RefreshResult reports a refresh attempt. Failures never propagate as
// panics or bare errors past the refresher's boundary; callers branch
// on Outcome.
type RefreshResult struct {
	Outcome    RefreshOutcome
	Token      string
	User       *User
	UserJSON   string
	StatusCode int
	Err        error
}

// RefresherConfig holds the endpoint and cookie keys a refresher
// operates on.
type RefresherConfig struct {
	ProfileURL string
	DataKey    string
	AuthKey    string
}

func (c RefresherConfig) authKey() string {
	if c.AuthKey == "" {
		return DefaultAuthKey
	}
	return c.AuthKey
}

// ProfileRefresher performs single authenticated profile reads to renew
// the stored bearer token.
type ProfileRefresher struct {
	store  CookieStore
	cfg    RefresherConfig
	client *http.Client
	logger Logger
}

// RefresherOption customizes refresher construction.
type RefresherOption func(*ProfileRefresher)

// WithRefresherHTTPClient injects the credentialed HTTP client used for
// the profile call.
func WithRefresherHTTPClient(client *http.Client) RefresherOption {
	return func(r *ProfileRefresher) {
		if client != nil {
			r.client = client
		}
	}
}

// WithRefresherLogger overrides the logger.
func WithRefresherLogger(logger Logger) RefresherOption {
	return func(r *ProfileRefresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewProfileRefresher returns a refresher writing through the given
// store.
func NewProfileRefresher(store CookieStore, cfg RefresherConfig, opts ...RefresherOption) *ProfileRefresher {
	r := &ProfileRefresher{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Fetch issues one authenticated GET against the profile endpoint
// carrying the current token and classifies the answer. The store is
// never touched: callers decide when, and whether, to Apply the result,
// so a result that arrives after the session moved on can be dropped
// without side effects.
func (r *ProfileRefresher) Fetch(ctx context.Context, token string) RefreshResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.ProfileURL, nil)
	if err != nil {
		return r.retry(0, errors.Wrap(err, errors.CategoryInternal, "failed to build refresh request"))
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderTokenRefresh, "1")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return r.retry(0, errors.Wrap(err, ErrRequestFailed.Category, ErrRequestFailed.Message).
			WithTextCode(ErrRequestFailed.TextCode))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return RefreshResult{
			Outcome:    RefreshOutcomeUnauthenticated,
			StatusCode: resp.StatusCode,
			Err:        ErrUnauthorized,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.retry(resp.StatusCode, ErrRequestFailed.WithMetadata(map[string]any{
			"status": resp.StatusCode,
		}))
	}

	result := RefreshResult{
		Outcome:    RefreshOutcomeUpdated,
		StatusCode: resp.StatusCode,
	}

	if renewed := extractHeaderToken(resp.Header.Get(r.cfg.authKey())); renewed != "" {
		result.Token = renewed
	}

	if user, raw := r.decodeProfile(resp.Body); user != nil {
		result.User = user
		result.UserJSON = raw
	}

	return result
}

// Apply writes a fetched result through the store: a rejection purges
// both cookies, a renewed token or user is written back with a long
// TTL. Retry outcomes leave stored state untouched.
func (r *ProfileRefresher) Apply(result RefreshResult) {
	switch result.Outcome {
	case RefreshOutcomeUnauthenticated:
		r.logger.Info("Profile refresh rejected, purging credentials")
		r.store.Delete(r.cfg.authKey())
		r.store.Delete(r.cfg.DataKey)

	case RefreshOutcomeUpdated:
		if result.Token != "" {
			r.store.Set(r.cfg.authKey(), result.Token, DefaultCookieTTLDays)
		}
		if result.UserJSON != "" {
			r.store.Set(r.cfg.DataKey, result.UserJSON, DefaultCookieTTLDays)
		}
	}
}

// Refresh fetches and immediately applies, for standalone use outside
// a session. On success the renewed token from the auth response header
// is written back with a long TTL; the cached user is only replaced
// when the body explicitly carries one. A 401 purges both cookies. Any
// other failure leaves stored state untouched.
func (r *ProfileRefresher) Refresh(ctx context.Context, token string) RefreshResult {
	result := r.Fetch(ctx, token)
	r.Apply(result)
	return result
}

func (r *ProfileRefresher) retry(status int, err error) RefreshResult {
	r.logger.Warn("Profile refresh failed, will retry", "error", err)
	return RefreshResult{
		Outcome:    RefreshOutcomeRetry,
		StatusCode: status,
		Err:        err,
	}
}

// decodeProfile pulls a refreshed user out of the response body when
// the backend included one under the data key. Absence is normal.
func (r *ProfileRefresher) decodeProfile(body io.Reader) (*User, string) {
	if r.cfg.DataKey == "" {
		return nil, ""
	}

	raw, err := io.ReadAll(body)
	if err != nil || len(raw) == 0 {
		return nil, ""
	}

	var envelope authResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, ""
	}

	userRaw, ok := envelope.Data[r.cfg.DataKey]
	if !ok {
		return nil, ""
	}

	user, err := decodeUser(string(userRaw))
	if err != nil {
		r.logger.Warn("Profile refresh body carried an undecodable user", "error", err)
		return nil, ""
	}

	return user, string(userRaw)
}
