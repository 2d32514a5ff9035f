// Package cache provides a TTL-bounded, lazily refreshed value holder and an
// invalidation bus that can fan out invalidations across instances.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches a fresh value from the source of truth.
type Loader[T any] func(ctx context.Context) (T, error)

// CachedStore holds a single value loaded on demand and kept for ttl.
// Failed loads are never cached, so the next Get retries the loader.
type CachedStore[T any] struct {
	mu       sync.RWMutex
	value    T
	loadedAt time.Time
	loaded   bool
	gen      uint64

	ttl   time.Duration
	load  Loader[T]
	now   func() time.Time
	group singleflight.Group
}

// NewCachedStore returns a store that refreshes through load at most once per ttl.
func NewCachedStore[T any](ttl time.Duration, load Loader[T]) *CachedStore[T] {
	return &CachedStore[T]{ttl: ttl, load: load, now: time.Now}
}

// Get returns the cached value while it is fresh, otherwise reloads it.
// Concurrent reloads are coalesced into one loader call.
func (s *CachedStore[T]) Get(ctx context.Context) (T, error) {
	if value, ok := s.fresh(); ok {
		return value, nil
	}

	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	result, err, _ := s.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		if value, ok := s.fresh(); ok {
			return value, nil
		}
		value, err := s.load(ctx)
		if err != nil {
			return value, err
		}
		s.mu.Lock()
		// Values loaded across an Invalidate are returned but not kept.
		if s.gen == gen {
			s.value = value
			s.loadedAt = s.now()
			s.loaded = true
		}
		s.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Invalidate drops the cached value so the next Get reloads regardless of ttl.
func (s *CachedStore[T]) Invalidate() {
	s.mu.Lock()
	var zero T
	s.value = zero
	s.loaded = false
	s.loadedAt = time.Time{}
	s.gen++
	s.mu.Unlock()
}

// LoadedAt reports when the current value was loaded; zero when empty.
func (s *CachedStore[T]) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *CachedStore[T]) fresh() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		var zero T
		return zero, false
	}
	if s.ttl > 0 && s.now().Sub(s.loadedAt) >= s.ttl {
		var zero T
		return zero, false
	}
	return s.value, true
}
