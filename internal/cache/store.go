// Package cache provides the in-memory TTL store for market data.
//
// Two read modes are offered. Strict reads honour expiry and evict an
// expired entry as a side effect. Stale reads ignore expiry and never evict,
// so the read path can always answer with the last known value.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

// Key prefixes, one per data kind
const (
	PricePrefix    = "cmp"
	PERatioPrefix  = "pe_ratio"
	EarningsPrefix = "earnings"
)

// PriceKey returns the cache key for a symbol's current market price
func PriceKey(symbol string) string { return PricePrefix + ":" + symbol }

// PERatioKey returns the cache key for a symbol's P/E ratio
func PERatioKey(symbol string) string { return PERatioPrefix + ":" + symbol }

// EarningsKey returns the cache key for a symbol's latest earnings date
func EarningsKey(symbol string) string { return EarningsPrefix + ":" + symbol }

// Entry is one cached value with its expiry and last write time
type Entry struct {
	Value     any
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Store is a string-keyed TTL cache. It also carries the refresh exclusion
// flag so monitoring can report it alongside the entries.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	refreshLock atomic.Bool

	metrics *metrics.Metrics
	now     func() time.Time // injectable clock for testing
}

// Option configures a Store
type Option func(*Store)

// WithMetrics records reads and entry counts on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put overwrites key unconditionally with an expiry of now + ttl.
func (s *Store) Put(key string, value any, ttl time.Duration) {
	now := s.now()

	s.mu.Lock()
	updated := now
	if prev, ok := s.entries[key]; ok && prev.UpdatedAt.After(updated) {
		// last write time never moves backwards for a key
		updated = prev.UpdatedAt
	}
	s.entries[key] = Entry{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: updated,
	}
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetCacheEntries(n)
}

// GetStrict returns the value only while now <= expiry. An expired entry is
// evicted by this call.
func (s *Store) GetStrict(key string) (any, bool) {
	now := s.now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.metrics.ObserveCacheRead("strict", "miss")
		return nil, false
	}
	if !now.After(entry.ExpiresAt) {
		s.metrics.ObserveCacheRead("strict", "hit")
		return entry.Value, true
	}

	s.mu.Lock()
	// re-check: a Put may have landed between the two locks
	if current, ok := s.entries[key]; ok && now.After(current.ExpiresAt) {
		delete(s.entries, key)
	}
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetCacheEntries(n)
	s.metrics.ObserveCacheRead("strict", "expired")
	return nil, false
}

// GetStale returns the last written value regardless of expiry.
func (s *Store) GetStale(key string) (any, bool) {
	entry, ok := s.GetStaleEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetStaleEntry is GetStale plus the entry's timestamps.
func (s *Store) GetStaleEntry(key string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.metrics.ObserveCacheRead("stale", "miss")
		return Entry{}, false
	}
	s.metrics.ObserveCacheRead("stale", "hit")
	return entry, true
}

// Len returns the number of entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats reports every entry's timestamps and whether the refresh flag is held.
// It never evicts.
func (s *Store) Stats() models.CacheStats {
	now := s.now()

	s.mu.RLock()
	stats := models.CacheStats{
		TotalEntries: len(s.entries),
		Entries:      make([]models.CacheEntryStat, 0, len(s.entries)),
	}
	for key, entry := range s.entries {
		stats.Entries = append(stats.Entries, models.CacheEntryStat{
			Key:       key,
			Expired:   now.After(entry.ExpiresAt),
			UpdatedAt: entry.UpdatedAt,
			ExpiresAt: entry.ExpiresAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(stats.Entries, func(i, j int) bool {
		return stats.Entries[i].Key < stats.Entries[j].Key
	})
	stats.RefreshLocked = s.refreshLock.Load()
	return stats
}

// TryLockRefresh acquires the refresh exclusion flag without blocking.
// It returns false when the flag is already held.
func (s *Store) TryLockRefresh() bool {
	return s.refreshLock.CompareAndSwap(false, true)
}

// UnlockRefresh releases the refresh exclusion flag.
func (s *Store) UnlockRefresh() {
	s.refreshLock.Store(false)
}

// RefreshLocked reports whether the refresh exclusion flag is held.
func (s *Store) RefreshLocked() bool {
	return s.refreshLock.Load()
}

// Strict is a typed GetStrict. A value of another type reads as absent.
func Strict[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.GetStrict(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Stale is a typed GetStale. A value of another type reads as absent.
func Stale[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.GetStale(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
