package authclient

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

const cookieNameDelimiter = '_'

// CookieStore abstracts the name -> value mapping backing a session.
// A missing cookie is not an error: Get returns the empty string and
// callers treat that as "not set".
type CookieStore interface {
	Get(name string) string
	Set(name string, value any, ttlDays int)
	Delete(name string)
}

// CookieName normalizes a key to its canonical cookie name: trimmed,
// lower case, with camel-case boundaries and blanks collapsed into a
// single underscore. "authToken" and "auth_token" resolve to the same
// cookie.
func CookieName(key string) string {
	trimmed := strings.TrimSpace(key)

	var b strings.Builder
	b.Grow(len(trimmed) + 4)

	for i, r := range trimmed {
		isUpper := r >= 'A' && r <= 'Z'
		isBlank := r == ' ' || r == '\t'

		if r == rune(cookieNameDelimiter) {
			if last := b.Len(); last > 0 && b.String()[last-1] == cookieNameDelimiter {
				continue
			}
		}

		if isBlank || (isUpper && i > 0) {
			if last := b.Len(); last == 0 || b.String()[last-1] != cookieNameDelimiter {
				b.WriteByte(cookieNameDelimiter)
			}
			if isBlank {
				continue
			}
		}

		if isUpper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}

	return b.String()
}

// ParseValue recovers a typed value from a raw cookie string: booleans,
// numbers (as float64), JSON objects and arrays, or the raw string
// itself. An empty string yields nil.
func ParseValue(raw string) any {
	if raw == "" {
		return nil
	}

	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}

	isObject := strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}")
	isArray := strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]")
	if isObject || isArray {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}

	return raw
}

// encodeCookieValue serializes non string values as JSON, mirroring how
// values are recovered by ParseValue.
func encodeCookieValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

type memoryCookie struct {
	value     string
	expiresAt time.Time
}

// MemoryCookieStore is the in-process CookieStore used by browser-less
// clients and tests. Safe for concurrent use.
type MemoryCookieStore struct {
	mu      sync.RWMutex
	cookies map[string]memoryCookie
	now     func() time.Time
}

// MemoryCookieStoreOption customizes store construction.
type MemoryCookieStoreOption func(*MemoryCookieStore)

// WithCookieClock injects a custom clock (useful for tests).
func WithCookieClock(clock func() time.Time) MemoryCookieStoreOption {
	return func(s *MemoryCookieStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryCookieStore returns an empty in-memory store.
func NewMemoryCookieStore(opts ...MemoryCookieStoreOption) *MemoryCookieStore {
	s := &MemoryCookieStore{
		cookies: map[string]memoryCookie{},
		now:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Get returns the raw cookie value, or the empty string when the cookie
// is missing or past its expiry.
func (s *MemoryCookieStore) Get(name string) string {
	key := CookieName(name)

	s.mu.RLock()
	c, ok := s.cookies[key]
	s.mu.RUnlock()

	if !ok {
		return ""
	}

	if s.now().After(c.expiresAt) {
		s.Delete(name)
		return ""
	}

	return c.value
}

// Set writes a cookie expiring ttlDays in the future.
func (s *MemoryCookieStore) Set(name string, value any, ttlDays int) {
	key := CookieName(name)
	expires := s.now().Add(time.Duration(ttlDays) * 24 * time.Hour)

	s.mu.Lock()
	s.cookies[key] = memoryCookie{
		value:     encodeCookieValue(value),
		expiresAt: expires,
	}
	s.mu.Unlock()
}

// Delete removes the cookie immediately.
func (s *MemoryCookieStore) Delete(name string) {
	key := CookieName(name)

	s.mu.Lock()
	delete(s.cookies, key)
	s.mu.Unlock()
}
