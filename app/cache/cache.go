// Package cache provides a timed LRU used for HTTP responses and
// filter results. Entries expire after a fixed TTL and the least
// recently used entry is evicted when the cache is full.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type TimedLRU[K comparable, V any] struct {
	lru *expirable.LRU[K, V]

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewTimedLRU[K comparable, V any](maxEntries int, ttl time.Duration) *TimedLRU[K, V] {
	return &TimedLRU[K, V]{
		lru: expirable.NewLRU[K, V](maxEntries, nil, ttl),
	}
}

func (c *TimedLRU[K, V]) Get(key K) (V, bool) {
	value, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// GetOrInsert returns the cached value for key, calling fn to compute
// and store one on a miss. fn errors are returned without caching.
func (c *TimedLRU[K, V]) GetOrInsert(key K, fn func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, value)
	return value, nil
}

func (c *TimedLRU[K, V]) Insert(key K, value V) {
	c.lru.Add(key, value)
}

func (c *TimedLRU[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

func (c *TimedLRU[K, V]) Len() int {
	return c.lru.Len()
}

func (c *TimedLRU[K, V]) Purge() {
	c.lru.Purge()
}

// Stats returns the number of lookup hits and misses seen so far.
func (c *TimedLRU[K, V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
