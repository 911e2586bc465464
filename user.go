package authclient

import (
	"encoding/json"
)

// User is the cached user record the backend returns at login and that
// the session serves to consumers. ID and Email are the two fields
// every backend in this infrastructure guarantees; anything else the
// profile carries survives round-trips through Extra.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email,omitempty"`

	// Token is the bearer credential composed into the login result. It
	// lives in its own cookie and is never serialized with the user.
	Token string `json:"-"`

	// CacheID is a client generated correlation id attached at login.
	CacheID string `json:"-"`

	Extra map[string]any `json:"-"`
}

// UnmarshalJSON keeps unrecognized profile fields in Extra so the
// cookie round-trip is lossless.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	u.apply(fields)
	return nil
}

// MarshalJSON emits the recognized fields merged with Extra. Token and
// CacheID are deliberately excluded.
func (u User) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(u.Extra)+2)
	for k, v := range u.Extra {
		fields[k] = v
	}

	fields["id"] = u.ID
	if u.Email != "" {
		fields["email"] = u.Email
	}

	return json.Marshal(fields)
}

// Merge applies a partial record on top of the current one. Recognized
// keys update the typed fields, everything else lands in Extra.
func (u *User) Merge(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	u.apply(patch)
}

// Clone returns a deep enough copy for snapshot hand-off.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	clone := *u
	if len(u.Extra) > 0 {
		clone.Extra = make(map[string]any, len(u.Extra))
		for k, v := range u.Extra {
			clone.Extra[k] = v
		}
	}

	return &clone
}

func (u *User) apply(fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "id":
			u.ID = toInt64(v)
		case "email":
			if email, ok := v.(string); ok {
				u.Email = email
			}
		default:
			if u.Extra == nil {
				u.Extra = map[string]any{}
			}
			u.Extra[k] = v
		}
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func decodeUser(raw string) (*User, error) {
	user := &User{}
	if err := json.Unmarshal([]byte(raw), user); err != nil {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{
			"reason": err.Error(),
		})
	}
	return user, nil
}
