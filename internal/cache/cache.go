package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"twig-cs-formatter/internal/pipeline"
	"twig-cs-formatter/internal/prettier"
	"twig-cs-formatter/internal/textutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Store persists formatted documents by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, key, formatted string) error
}

// ErrNotFound is returned by a Store for unknown keys.
var ErrNotFound = errors.New("cache entry not found")

// FormatCache provides in-memory + optionally PostgreSQL-backed caching of
// formatter output.
type FormatCache struct {
	store  Store
	mu     sync.RWMutex
	memory map[string]string // key → formatted text
}

// NewFormatCache creates a cache. A nil store keeps entries in memory only.
func NewFormatCache(store Store) *FormatCache {
	return &FormatCache{
		store:  store,
		memory: make(map[string]string),
	}
}

// Key identifies a document under a given configuration and formatter
// fingerprint.
func Key(text string, cfg prettier.Config, fingerprint string) (string, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return textutil.Hash(fingerprint, text, string(encoded)), nil
}

// Get retrieves a cached result. Returns empty string and false if not found.
func (c *FormatCache) Get(ctx context.Context, key string) (string, bool) {
	// Check in-memory cache first.
	c.mu.RLock()
	if v, ok := c.memory[key]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	if c.store == nil {
		return "", false
	}

	formatted, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("Format cache lookup failed")
		}
		return "", false
	}

	// Populate in-memory cache.
	c.mu.Lock()
	c.memory[key] = formatted
	c.mu.Unlock()

	return formatted, true
}

// Set stores a result in both in-memory and persistent cache.
func (c *FormatCache) Set(ctx context.Context, key, formatted string) error {
	c.mu.Lock()
	c.memory[key] = formatted
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Upsert(ctx, key, formatted); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Formatter serves repeated documents from the cache and formats the rest.
type Formatter struct {
	inner *pipeline.Formatter
	cache *FormatCache
}

// NewFormatter wraps inner with cache.
func NewFormatter(inner *pipeline.Formatter, cache *FormatCache) *Formatter {
	return &Formatter{inner: inner, cache: cache}
}

// Format implements pipeline.DocumentFormatter.
func (f *Formatter) Format(ctx context.Context, req pipeline.Request) (string, error) {
	cfg, err := f.inner.Config(req)
	if err != nil {
		return "", err
	}
	key, err := Key(req.Text, cfg, f.inner.Fingerprint())
	if err != nil {
		return "", err
	}

	if formatted, ok := f.cache.Get(ctx, key); ok {
		log.Debug().Str("file", req.Path).Msg("Format cache hit")
		return formatted, nil
	}

	formatted, err := f.inner.Format(ctx, req)
	if err != nil {
		return "", err
	}
	if err := f.cache.Set(ctx, key, formatted); err != nil {
		log.Warn().Err(err).Str("file", req.Path).Msg("Failed to cache formatted document")
	}
	return formatted, nil
}

// PGStore keeps cache entries in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the cache table if needed.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS format_cache (
			key        TEXT PRIMARY KEY,
			formatted  TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create format_cache table: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PGStore) Get(ctx context.Context, key string) (string, error) {
	var formatted string
	err := s.pool.QueryRow(ctx, `SELECT formatted FROM format_cache WHERE key = $1`, key).Scan(&formatted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query format cache: %w", err)
	}
	return formatted, nil
}

// Upsert implements Store.
func (s *PGStore) Upsert(ctx context.Context, key, formatted string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO format_cache (key, formatted) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET formatted = EXCLUDED.formatted, updated_at = now()`,
		key, formatted)
	if err != nil {
		return fmt.Errorf("upsert format cache: %w", err)
	}
	return nil
}
