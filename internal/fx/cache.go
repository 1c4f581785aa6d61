// Package fx provides the short-TTL currency-rate cache consumed by landed
// cost calculations. One cached entry per currency pair, refreshed from an
// external source, served stale with an explicit flag when the source is
// down.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fetched rate counts as fresh.
const DefaultTTL = time.Hour

// ErrRateUnavailable means the source failed and no previous value exists.
var ErrRateUnavailable = errors.New("rate-unavailable")

// Source fetches the current rate for a currency pair; may fail transiently.
type Source interface {
	Rate(ctx context.Context, pair string) (float64, error)
	Name() string
}

// Entry is one cached rate with provenance.
type Entry struct {
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
}

// Cache memoizes exchange rates per pair with a TTL. Safe for concurrent
// use; racing refreshes are idempotent and the last writer wins.
type Cache struct {
	source Source
	ttl    time.Duration
	dir    string // persistence dir; empty disables persistence
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default one-hour freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithDir enables JSON persistence, one file per pair.
func WithDir(dir string) Option {
	return func(c *Cache) { c.dir = dir }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache over the given source and loads any persisted
// entries from disk.
func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loadPersisted()
	return c
}

// Get returns the rate for a pair such as "CNY/RUB". A cached entry younger
// than the TTL is returned as-is. Otherwise the source is consulted; on
// refresh failure the previous value, if any, is served with stale=true.
// With no previous value the call fails with ErrRateUnavailable.
func (c *Cache) Get(ctx context.Context, pair string) (float64, bool, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))

	c.mu.Lock()
	entry, ok := c.entries[pair]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.FetchedAt) < c.ttl {
		return entry.Rate, false, nil
	}

	rate, err := c.source.Rate(ctx, pair)
	if err != nil {
		if ok {
			zap.L().Warn("fx: refresh failed, serving stale rate",
				zap.String("pair", pair),
				zap.Time("fetched_at", entry.FetchedAt),
				zap.Error(err),
			)
			return entry.Rate, true, nil
		}
		return 0, false, eris.Wrapf(ErrRateUnavailable, "fx: refresh %s: %v", pair, err)
	}

	fresh := Entry{Rate: rate, FetchedAt: c.now().UTC(), Source: c.source.Name()}
	c.mu.Lock()
	c.entries[pair] = fresh
	c.mu.Unlock()
	c.persist(pair, fresh)

	return rate, false, nil
}

// persist writes one pair's entry as an atomic unit (temp file + rename).
func (c *Cache) persist(pair string, entry Entry) {
	if c.dir == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		zap.L().Warn("fx: create cache dir", zap.Error(err))
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		zap.L().Warn("fx: marshal cache entry", zap.Error(err))
		return
	}
	path := c.pathFor(pair)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		zap.L().Warn("fx: write cache entry", zap.String("pair", pair), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		zap.L().Warn("fx: rename cache entry", zap.String("pair", pair), zap.Error(err))
	}
}

func (c *Cache) loadPersisted() {
	if c.dir == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, "fx_*.json"))
	if err != nil {
		return
	}
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			zap.L().Warn("fx: skipping corrupt cache file", zap.String("path", path), zap.Error(err))
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "fx_"), ".json")
		pair := strings.ToUpper(strings.ReplaceAll(name, "_", "/"))
		c.entries[pair] = entry
	}
}

func (c *Cache) pathFor(pair string) string {
	name := strings.ToLower(strings.ReplaceAll(pair, "/", "_"))
	return filepath.Join(c.dir, "fx_"+name+".json")
}
