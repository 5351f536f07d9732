package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/tradebook/resolver"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cache is a resolver.Cache in the symbol_cache table. Expired entries are
// ignored, and overwritten by the next Set.
type Cache struct {
	db  *pgxpool.Pool
	ttl map[resolver.Kind]time.Duration
	now func() time.Time
}

// NewCache returns the cache stored in 'db'. 'ttl' defaults to
// resolver.DefaultTTL.
func NewCache(db *pgxpool.Pool, ttl map[resolver.Kind]time.Duration) *Cache {
	if ttl == nil {
		ttl = resolver.DefaultTTL
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}
}

func (c *Cache) Get(ctx context.Context, kind resolver.Kind, key string) (resolver.Mapping, bool, error) {
	query := `
		SELECT ticker, source, confidence, resolved_at
		FROM symbol_cache
		WHERE kind = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > $3)
	`
	var (
		m            resolver.Mapping
		source, conf string
		resolvedAt   *time.Time
	)
	err := c.db.QueryRow(ctx, query, string(kind), key, c.now()).Scan(&m.Ticker, &source, &conf, &resolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("failed to read cache %s: %w", key, err)
	}
	m.Source, m.Confidence = resolver.Source(source), resolver.Confidence(conf)
	if resolvedAt != nil {
		m.ResolvedAt = *resolvedAt
	}
	return m, true, nil
}

func (c *Cache) Set(ctx context.Context, kind resolver.Kind, key string, m resolver.Mapping) error {
	var expires *time.Time
	if ttl := c.ttl[kind]; ttl > 0 {
		e := c.now().Add(ttl)
		expires = &e
	}
	var resolvedAt *time.Time
	if !m.ResolvedAt.IsZero() {
		resolvedAt = &m.ResolvedAt
	}
	query := `
		INSERT INTO symbol_cache (kind, key, ticker, source, confidence, resolved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind, key) DO UPDATE SET
			ticker = EXCLUDED.ticker, source = EXCLUDED.source, confidence = EXCLUDED.confidence,
			resolved_at = EXCLUDED.resolved_at, expires_at = EXCLUDED.expires_at
	`
	_, err := c.db.Exec(ctx, query, string(kind), key, m.Ticker, string(m.Source), string(m.Confidence), resolvedAt, expires)
	if err != nil {
		return fmt.Errorf("failed to write cache %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, kind resolver.Kind, key string) error {
	if _, err := c.db.Exec(ctx, `DELETE FROM symbol_cache WHERE kind = $1 AND key = $2`, string(kind), key); err != nil {
		return fmt.Errorf("failed to invalidate cache %s: %w", key, err)
	}
	return nil
}

var _ resolver.Cache = (*Cache)(nil)
