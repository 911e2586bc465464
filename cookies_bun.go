package authclient

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CookieRecord is the persisted cookie row.
type CookieRecord struct {
	bun.BaseModel `bun:"table:auth_cookies,alias:ack"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name      string     `bun:"name,notnull,unique" json:"name"`
	Value     string     `bun:"value,notnull" json:"value"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BunCookieStore is a durable CookieStore over SQLite (or any Bun
// dialect), for CLI and native clients that keep their session across
// runs. Storage failures degrade to "cookie not set" and are logged,
// matching the CookieStore contract of never signaling errors for a
// missing cookie.
type BunCookieStore struct {
	db     *bun.DB
	repo   repository.Repository[*CookieRecord]
	now    func() time.Time
	logger Logger
}

var _ CookieStore = (*BunCookieStore)(nil)

// BunCookieStoreOption customizes store construction.
type BunCookieStoreOption func(*BunCookieStore)

// WithBunCookieClock injects a custom clock (useful for tests).
func WithBunCookieClock(clock func() time.Time) BunCookieStoreOption {
	return func(s *BunCookieStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithBunCookieLogger overrides the logger.
func WithBunCookieLogger(logger Logger) BunCookieStoreOption {
	return func(s *BunCookieStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBunCookieStore builds a store over an already-open Bun handle; the
// host application owns connection lifecycle.
func NewBunCookieStore(db *bun.DB, opts ...BunCookieStoreOption) *BunCookieStore {
	repo := repository.NewRepository[*CookieRecord](db, repository.ModelHandlers[*CookieRecord]{
		NewRecord: func() *CookieRecord { return &CookieRecord{} },
		GetID: func(c *CookieRecord) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *CookieRecord, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	s := &BunCookieStore{
		db:     db,
		repo:   repo,
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// CreateCookiesTable creates the backing table when missing.
func CreateCookiesTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*CookieRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Get returns the stored value, or the empty string for a missing or
// expired cookie. Expired rows are deleted on read.
func (s *BunCookieStore) Get(name string) string {
	ctx := context.Background()
	key := CookieName(name)

	record := &CookieRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if !repository.IsRecordNotFound(err) {
			s.logger.Warn("Cookie store read failed", "name", key, "error", err)
		}
		return ""
	}

	if s.now().After(record.ExpiresAt) {
		s.Delete(name)
		return ""
	}

	return record.Value
}

// Set upserts the cookie with an expiry ttlDays in the future.
func (s *BunCookieStore) Set(name string, value any, ttlDays int) {
	ctx := context.Background()
	key := CookieName(name)
	now := s.now()

	record := &CookieRecord{
		ID:        uuid.New(),
		Name:      key,
		Value:     encodeCookieValue(value),
		ExpiresAt: now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		UpdatedAt: &now,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		s.logger.Warn("Cookie store write failed", "name", key, "error", err)
	}
}

// Delete removes the cookie immediately.
func (s *BunCookieStore) Delete(name string) {
	ctx := context.Background()
	key := CookieName(name)

	_, err := s.db.NewDelete().
		Model((*CookieRecord)(nil)).
		Where("?TableAlias.name = ?", key).
		Exec(ctx)

	if err != nil {
		s.logger.Warn("Cookie store delete failed", "name", key, "error", err)
	}
}

// GetRecord exposes the full row for host applications that need the
// stored expiry, resolving by normalized name.
func (s *BunCookieStore) GetRecord(ctx context.Context, name string) (*CookieRecord, error) {
	return s.repo.GetByIdentifier(ctx, CookieName(name))
}
