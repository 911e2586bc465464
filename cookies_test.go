package authclient_test

import (
	"testing"
	"time"

	authclient "github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
)

func TestCookieName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lower case passes through", "authorization", "authorization"},
		{"camel case splits", "authToken", "auth_token"},
		{"blanks collapse", "auth token", "auth_token"},
		{"leading blanks trimmed", "  userProfile ", "user_profile"},
		{"upper case lowered", "Email", "email"},
		{"no duplicate delimiters", "auth Token", "auth_token"},
		{"existing underscores survive", "auth_token", "auth_token"},
		{"blank before underscore collapses", "auth _token", "auth_token"},
		{"repeated underscores collapse", "auth__token", "auth_token"},
		{"empty stays empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, authclient.CookieName(tc.input))
		})
	}
}

func TestCookieNameEquivalence(t *testing.T) {
	// camelCase and snake_case callers must hit the same cookie
	assert.Equal(t,
		authclient.CookieName("authToken"),
		authclient.CookieName("auth_token"),
	)
}

func TestParseValue(t *testing.T) {
	assert.Nil(t, authclient.ParseValue(""))
	assert.Equal(t, true, authclient.ParseValue("true"))
	assert.Equal(t, false, authclient.ParseValue("false"))
	assert.Equal(t, float64(42), authclient.ParseValue("42"))
	assert.Equal(t, 1.5, authclient.ParseValue("1.5"))

	parsed := authclient.ParseValue(`{"id":7}`)
	obj, ok := parsed.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, float64(7), obj["id"])

	arr, ok := authclient.ParseValue(`[1,2]`).([]any)
	assert.True(t, ok)
	assert.Len(t, arr, 2)

	// malformed json degrades to the raw string
	assert.Equal(t, "{oops", authclient.ParseValue("{oops"))
	assert.Equal(t, "hello", authclient.ParseValue("hello"))
}

func TestMemoryCookieStoreRoundTrip(t *testing.T) {
	store := authclient.NewMemoryCookieStore()

	store.Set("authToken", "abc123", 1)
	assert.Equal(t, "abc123", store.Get("authToken"))

	// normalized aliases resolve to the same cookie
	assert.Equal(t, "abc123", store.Get("auth_token"))

	store.Delete("auth_token")
	assert.Equal(t, "", store.Get("authToken"))
}

func TestMemoryCookieStoreEncodesValues(t *testing.T) {
	store := authclient.NewMemoryCookieStore()

	store.Set("profile", map[string]any{"id": 7}, 1)

	parsed := authclient.ParseValue(store.Get("profile"))
	obj, ok := parsed.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, float64(7), obj["id"])
}

func TestMemoryCookieStoreExpiry(t *testing.T) {
	now := time.Now()
	current := now

	store := authclient.NewMemoryCookieStore(
		authclient.WithCookieClock(func() time.Time { return current }),
	)

	store.Set("authorization", "tok", 1)
	assert.Equal(t, "tok", store.Get("authorization"))

	current = now.Add(25 * time.Hour)
	assert.Equal(t, "", store.Get("authorization"))

	// expired cookie was dropped, not just hidden
	current = now
	assert.Equal(t, "", store.Get("authorization"))
}

func TestMemoryCookieStoreMissing(t *testing.T) {
	store := authclient.NewMemoryCookieStore()
	assert.Equal(t, "", store.Get("never_set"))
}
