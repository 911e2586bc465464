package authclient_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientInjectsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	store := authclient.NewMemoryCookieStore()
	store.Set("authorization", "tok-123", 365)

	client := authclient.NewHTTPClient("authorization", store)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestHTTPClientSkipsInjectionWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	store := authclient.NewMemoryCookieStore()
	client := authclient.NewHTTPClient("authorization", store)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "", gotAuth)
}

func TestHTTPClientPreservesExplicitAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	store := authclient.NewMemoryCookieStore()
	store.Set("authorization", "stored-token", 365)

	client := authclient.NewHTTPClient("authorization", store)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer explicit-token")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer explicit-token", gotAuth)
}

func TestHTTPClientCapturesReissuedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Authorization", "Bearer renewed-token")
	}))
	defer server.Close()

	store := authclient.NewMemoryCookieStore()
	store.Set("authorization", "old-token", 365)

	client := authclient.NewHTTPClient("authorization", store)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "renewed-token", store.Get("authorization"))
}

func TestHTTPClientDefaultsAuthKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	store := authclient.NewMemoryCookieStore()
	store.Set("authorization", "tok-456", 365)

	client := authclient.NewHTTPClient("", store)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-456", gotAuth)
}
