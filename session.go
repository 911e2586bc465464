package authclient

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultProfileUpdateInterval bounds how often the session re-checks
// the stored token's expiry claim.
const DefaultProfileUpdateInterval = 2500 * time.Millisecond

// Status is the session's derived authorization state.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusError           Status = "error"
)

// statusTransitions is the legal transition table. Illegal transitions
// indicate a toolkit bug and are logged, never silently swallowed.
var statusTransitions = map[Status]map[Status]struct{}{
	StatusUnknown: {
		StatusLoading:         {},
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
	},
	StatusLoading: {
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
		StatusError:           {},
	},
	StatusAuthenticated: {
		StatusLoading:         {},
		StatusUnauthenticated: {},
		StatusError:           {},
	},
	StatusUnauthenticated: {
		StatusLoading:       {},
		StatusAuthenticated: {},
	},
	StatusError: {
		StatusLoading:         {},
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
	},
}

func canTransition(from, to Status) bool {
	allowed, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, exists := allowed[to]
	return exists
}

// Snapshot is the aggregate the session exposes to consumers. The user
// is three-valued: before hydration completes (Hydrated false) a nil
// User means "not yet determined", afterwards it means "determined
// absent". Consumers must treat these differently, e.g. to avoid a
// premature redirect.
type Snapshot struct {
	User       *User
	Status     Status
	Hydrated   bool
	StatusCode int
}

// UserDetermined reports whether a nil User is meaningful yet.
func (s Snapshot) UserDetermined() bool {
	return s.Hydrated
}

// LoginURLs carries the endpoint pair for local vs social logins.
type LoginURLs struct {
	Local  string
	Social string
}

// SingleLoginURL points both providers at the same endpoint.
func SingleLoginURL(url string) LoginURLs {
	return LoginURLs{Local: url, Social: url}
}

func (u LoginURLs) forProvider(p Provider) string {
	if p == ProviderLocal {
		return u.Local
	}
	if u.Social != "" {
		return u.Social
	}
	return u.Local
}

// SessionConfig holds the caller-facing configuration surface.
type SessionConfig struct {
	// DataKey names the body field holding the user object and the user
	// cookie.
	DataKey string
	// AuthKey names the auth header and token cookie. Defaults to
	// "authorization".
	AuthKey string

	LoginURL   LoginURLs
	LogoutURL  string
	ProfileURL string

	// ProfileUpdateInterval bounds the staleness polling. Defaults to
	// DefaultProfileUpdateInterval.
	ProfileUpdateInterval time.Duration

	// HTTPClient overrides the credentialed client built from the
	// cookie store.
	HTTPClient *http.Client
}

func (c SessionConfig) authKey() string {
	if c.AuthKey == "" {
		return DefaultAuthKey
	}
	return c.AuthKey
}

func (c SessionConfig) interval() time.Duration {
	if c.ProfileUpdateInterval <= 0 {
		return DefaultProfileUpdateInterval
	}
	return c.ProfileUpdateInterval
}

// Session owns the in-memory authorization state and orchestrates
// hydration, staleness polling, visibility re-validation, login and
// logout. All methods are safe for concurrent use.
type Session struct {
	id        uuid.UUID
	cfg       SessionConfig
	store     CookieStore
	client    *http.Client
	refresher *ProfileRefresher
	clock     *TokenClock
	validator TokenValidator
	logger    Logger
	sink      ActivitySink
	onChange  func(Snapshot)

	mu         sync.Mutex
	user       *User
	status     Status
	statusCode int
	hydrated   bool
	started    bool
	closed     bool
	refreshing    bool
	generation    uint64
	refreshCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SessionOption customizes session construction.
type SessionOption func(*Session)

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionClock injects a custom token clock (useful for tests).
func WithSessionClock(clock *TokenClock) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used to publish
// lifecycle events.
func WithSessionActivitySink(sink ActivitySink) SessionOption {
	return func(s *Session) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithSessionTokenValidator enables local verification of cached tokens
// before hydration trusts them.
func WithSessionTokenValidator(validator TokenValidator) SessionOption {
	return func(s *Session) {
		s.validator = validator
	}
}

// WithSessionRefresher overrides the profile refresher.
func WithSessionRefresher(refresher *ProfileRefresher) SessionOption {
	return func(s *Session) {
		if refresher != nil {
			s.refresher = refresher
		}
	}
}

// WithOnChange registers the re-render hook: it receives a Snapshot on
// every state change and is never invoked after Close. The callback
// must not call back into the session; everything it needs is on the
// snapshot.
func WithOnChange(fn func(Snapshot)) SessionOption {
	return func(s *Session) {
		s.onChange = fn
	}
}

// NewSession builds a session over the given cookie store. The store is
// a hard requirement: a nil store is a programmer error.
func NewSession(store CookieStore, cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, ErrSessionRequired.WithMetadata(map[string]any{
			"reason": "cookie store is nil",
		})
	}

	if cfg.DataKey == "" {
		return nil, errors.New("session config requires a data key", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	s := &Session{
		id:     uuid.New(),
		cfg:    cfg,
		store:  store,
		clock:  NewTokenClock(),
		logger: defLogger{},
		sink:   noopActivitySink{},
		status: StatusUnknown,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.client == nil {
		s.client = cfg.HTTPClient
	}
	if s.client == nil {
		s.client = NewHTTPClient(cfg.authKey(), store)
	}

	if s.refresher == nil {
		s.refresher = NewProfileRefresher(store, RefresherConfig{
			ProfileURL: cfg.ProfileURL,
			DataKey:    cfg.DataKey,
			AuthKey:    cfg.AuthKey,
		}, WithRefresherHTTPClient(s.client), WithRefresherLogger(s.logger))
	}

	return s, nil
}

// ID returns the session instance identifier used in activity events.
func (s *Session) ID() string {
	return s.id.String()
}

// Start hydrates the session from cookies and begins staleness polling.
// The polling goroutine stops when ctx is canceled or Close is called.
func (s *Session) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	s.hydrate()

	go s.poll()

	return nil
}

// Close cancels any in-flight request, stops the poller, and guarantees
// no callback fires afterwards. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	return nil
}

// Snapshot returns the current aggregate state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Revalidate triggers an immediate profile refresh, bypassing the
// polling interval. Used when the host environment signals the view
// became foreground-visible again after a long background period.
// Dropped when no user is set or a refresh is already in flight.
func (s *Session) Revalidate() {
	s.mu.Lock()
	hasUser := s.user != nil && !s.closed
	s.mu.Unlock()

	if hasUser {
		s.triggerRefresh()
	}
}

// LoginRequest describes an interactive login. Provider defaults to
// local.
type LoginRequest struct {
	Provider    Provider
	Email       string
	Password    string
	SocialToken string

	// HTTPClient overrides the session client for this call only.
	HTTPClient *http.Client
}

// Login delegates to the login flow against the endpoint for the
// request's provider. On success the token and user cookies are
// written, the user is set, and the status becomes authenticated. On
// failure the error propagates so the initiating UI can show
// provider-specific feedback; there is no automatic retry.
func (s *Session) Login(ctx context.Context, req LoginRequest) (*User, error) {
	provider := req.Provider
	if provider == "" {
		provider = ProviderLocal
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.supersedeRefreshLocked()
	s.setStatusLocked(StatusLoading)
	client := req.HTTPClient
	if client == nil {
		client = s.client
	}
	s.mu.Unlock()

	cfg := LoginConfig{
		Provider:   provider,
		APIURL:     s.cfg.LoginURL.forProvider(provider),
		DataKey:    s.cfg.DataKey,
		AuthKey:    s.cfg.AuthKey,
		HTTPClient: client,
		Store:      s.store,
		Logger:     s.logger,
	}

	if provider == ProviderLocal {
		cfg.Local = &LocalCredentials{Email: req.Email, Password: req.Password}
	} else {
		cfg.Social = &SocialCredentials{SocialToken: req.SocialToken}
	}

	user, err := Login(ctx, cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return user, err
	}

	// A poll may have kicked off a refresh while the login call was on
	// the wire; its answer must not overwrite the fresher credentials.
	s.supersedeRefreshLocked()

	if err != nil {
		if IsUnauthorizedError(err) {
			s.user = nil
			s.hydrated = true
			s.setStatusLocked(StatusUnauthenticated)
		} else {
			s.statusCode = codeFromError(err)
			s.setStatusLocked(StatusError)
		}
		s.emitLocked(ActivityEventLoginFailure, map[string]any{
			"provider": string(provider),
			"error":    err.Error(),
		})
		return nil, err
	}

	s.user = user
	s.hydrated = true
	s.setStatusLocked(StatusAuthenticated)
	s.emitLocked(ActivityEventLoginSuccess, map[string]any{
		"provider": string(provider),
	})

	return user.Clone(), nil
}

// Logout purges both cookies in a deferred guard, attempts one
// best-effort authenticated POST to the logout endpoint, and settles
// at unauthenticated regardless of the network outcome. Safe to call
// repeatedly.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.supersedeRefreshLocked()
	client := s.client
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if !s.closed {
			s.supersedeRefreshLocked()
			s.purgeCredentials()
			s.user = nil
			s.hydrated = true
			s.setStatusLocked(StatusUnauthenticated)
			s.emitLocked(ActivityEventLogout, nil)
		}
		s.mu.Unlock()
	}()

	if s.cfg.LogoutURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.LogoutURL, nil)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build logout request")
	}

	if token := s.store.Get(s.cfg.authKey()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Warn("Logout call failed", "error", err)
		return errors.Wrap(err, ErrRequestFailed.Category, ErrRequestFailed.Message).
			WithTextCode(ErrRequestFailed.TextCode)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logger.Warn("Logout endpoint answered with an error", "status", resp.StatusCode)
		return ErrRequestFailed.WithMetadata(map[string]any{
			"status": resp.StatusCode,
		})
	}

	return nil
}

// Update merges a partial record into the current user, in memory only.
// The user cookie is rewritten at the next login or profile refresh,
// not here.
func (s *Session) Update(patch map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.user == nil {
		return
	}

	s.user.Merge(patch)
	s.notifyLocked()
}

// hydrate reads the stored token and user and settles the initial
// status. A present token without a user (or vice versa) is invalid
// and both are purged together. An expired token still hydrates the
// cached user immediately and schedules a background refresh
// (stale-while-revalidate).
func (s *Session) hydrate() {
	s.setStatus(StatusLoading)

	token := s.store.Get(s.cfg.authKey())
	rawUser := s.store.Get(s.cfg.DataKey)

	if token == "" || rawUser == "" {
		s.settleUnauthenticated("missing credentials")
		return
	}

	if s.validator != nil {
		if err := s.validator.Validate(token); err != nil && !errors.Is(err, ErrTokenExpired) {
			s.logger.Info("Stored token failed verification, purging", "error", err)
			s.settleUnauthenticated("token verification failed")
			return
		}
	}

	user, err := decodeUser(rawUser)
	if err != nil {
		s.logger.Warn("Stored user is undecodable, purging", "error", err)
		s.settleUnauthenticated("undecodable user")
		return
	}

	exp, err := DecodeExpiry(token)
	if err != nil {
		s.logger.Warn("Stored token has an undecodable expiry", "error", err)
	}

	s.mu.Lock()
	s.user = user
	s.hydrated = true
	s.setStatusLocked(StatusAuthenticated)
	s.emitLocked(ActivityEventSessionHydrated, map[string]any{
		"stale": s.clock.HasExpired(exp),
	})
	s.mu.Unlock()

	if s.clock.HasExpired(exp) {
		s.triggerRefresh()
	}
}

func (s *Session) settleUnauthenticated(reason string) {
	s.purgeCredentials()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.hydrated = true
	s.setStatusLocked(StatusUnauthenticated)
	s.emitLocked(ActivityEventSessionHydrated, map[string]any{
		"reason": reason,
	})
}

func (s *Session) poll() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.interval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkStaleness()
		}
	}
}

func (s *Session) checkStaleness() {
	token := s.store.Get(s.cfg.authKey())
	if token == "" {
		return
	}

	exp, err := DecodeExpiry(token)
	if err != nil {
		s.logger.Debug("Staleness check skipped undecodable token")
		return
	}

	if !s.clock.HasExpired(exp) {
		return
	}

	s.triggerRefresh()
}

// supersedeRefreshLocked invalidates any refresh currently in flight:
// the generation bump makes its result a no-op in applyRefresh, and the
// cancel aborts its request early. Callers mutate session state right
// after, so a stale result can never clobber what they write.
func (s *Session) supersedeRefreshLocked() {
	s.generation++
	if s.refreshCancel != nil {
		s.refreshCancel()
		s.refreshCancel = nil
	}
	s.refreshing = false
}

// triggerRefresh starts a background refresh unless one is already in
// flight; concurrent triggers are dropped, not queued. Each attempt is
// generation-tagged so a superseded request can never overwrite state
// from a more recent one.
func (s *Session) triggerRefresh() bool {
	s.mu.Lock()
	if s.closed || s.refreshing {
		s.mu.Unlock()
		return false
	}

	token := s.store.Get(s.cfg.authKey())
	if token == "" {
		s.mu.Unlock()
		return false
	}

	s.refreshing = true
	s.generation++
	gen := s.generation

	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s.refreshCancel = cancel

	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		result := s.refresher.Fetch(ctx, token)
		s.applyRefresh(gen, result)
	}()

	return true
}

func (s *Session) applyRefresh(gen uint64, result RefreshResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen == s.generation {
		s.refreshing = false
		s.refreshCancel = nil
	}

	if s.closed || gen != s.generation {
		return
	}

	s.refresher.Apply(result)

	switch result.Outcome {
	case RefreshOutcomeUnauthenticated:
		s.user = nil
		s.setStatusLocked(StatusUnauthenticated)
		s.emitLocked(ActivityEventRefreshFailure, map[string]any{
			"status": result.StatusCode,
		})

	case RefreshOutcomeUpdated:
		if result.User != nil {
			s.user = result.User
			s.notifyLocked()
		}
		s.setStatusLocked(StatusAuthenticated)
		s.emitLocked(ActivityEventRefreshSuccess, map[string]any{
			"renewed_token": result.Token != "",
		})

	case RefreshOutcomeRetry:
		s.emitLocked(ActivityEventRefreshFailure, map[string]any{
			"status":    result.StatusCode,
			"transient": true,
		})
	}
}

func (s *Session) purgeCredentials() {
	s.store.Delete(s.cfg.authKey())
	s.store.Delete(s.cfg.DataKey)
}

func (s *Session) setStatus(to Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(to)
}

func (s *Session) setStatusLocked(to Status) {
	if s.closed {
		return
	}

	from := s.status
	if from == to {
		return
	}

	if !canTransition(from, to) {
		s.logger.Error("Illegal session status transition", "from", from, "to", to)
	}

	s.status = to
	if to != StatusError {
		s.statusCode = 0
	}

	s.emitTransitionLocked(ActivityEventStatusChanged, from, nil)
	s.notifyLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		User:       s.user.Clone(),
		Status:     s.status,
		Hydrated:   s.hydrated,
		StatusCode: s.statusCode,
	}
}

func (s *Session) notifyLocked() {
	if s.onChange == nil || s.closed {
		return
	}
	s.onChange(s.snapshotLocked())
}

func (s *Session) emitLocked(eventType ActivityEventType, metadata map[string]any) {
	s.emitTransitionLocked(eventType, s.status, metadata)
}

// emitTransitionLocked records an event whose from status may differ
// from the current one; emitLocked covers the common case where the
// status did not move.
func (s *Session) emitTransitionLocked(eventType ActivityEventType, from Status, metadata map[string]any) {
	if s.closed {
		return
	}

	userID := ""
	if s.user != nil && s.user.ID != 0 {
		userID = strconv.FormatInt(s.user.ID, 10)
	}

	event := ActivityEvent{
		EventType:  eventType,
		SessionID:  s.id.String(),
		UserID:     userID,
		FromStatus: from,
		ToStatus:   s.status,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("Session activity sink error: %v", err)
	}
}

func codeFromError(err error) int {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code != 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}
