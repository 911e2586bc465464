package authclient

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// authTransport decorates a RoundTripper with the toolkit's two
// interceptors: outgoing requests carry the stored bearer token, and
// re-issued tokens on responses are captured back into the store.
type authTransport struct {
	base    http.RoundTripper
	store   CookieStore
	authKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	// Per RoundTripper contract the request must not be mutated.
	out := req.Clone(req.Context())
	if out.Header.Get("Authorization") == "" {
		if token := t.store.Get(t.authKey); token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if renewed := extractHeaderToken(resp.Header.Get(t.authKey)); renewed != "" {
		t.store.Set(t.authKey, renewed, DefaultCookieTTLDays)
	}

	return resp, nil
}

// HTTPClientOption customizes client construction.
type HTTPClientOption func(*http.Client, *authTransport)

// WithBaseTransport sets the transport wrapped by the auth
// interceptors.
func WithBaseTransport(base http.RoundTripper) HTTPClientOption {
	return func(_ *http.Client, t *authTransport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithHTTPTimeout overrides the client timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPClientOption {
	return func(c *http.Client, _ *authTransport) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// NewHTTPClient returns an auth-aware client: every request carries the
// stored bearer token and server cookies (credentialed calls), and any
// token the backend re-issues in the auth response header is written
// back to the store with a long TTL.
func NewHTTPClient(authKey string, store CookieStore, opts ...HTTPClientOption) *http.Client {
	if authKey == "" {
		authKey = DefaultAuthKey
	}

	transport := &authTransport{
		store:   store,
		authKey: authKey,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	// The jar is what makes calls credentialed: backend session cookies
	// survive across requests from the same client.
	if jar, err := cookiejar.New(nil); err == nil {
		client.Jar = jar
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client, transport)
		}
	}

	return client
}
