// Package cache keeps short-lived in-memory state, such as submissions
// that are being committed, with expiration.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// sweepEvery is the number of writes between two sweeps of expired entries.
const sweepEvery = 100

// Cache stores values of type V with expiration time.
type Cache[V any] struct {
	items           sync.Map
	counter         atomic.Uint32
	defaultDuration time.Duration
	now             func() time.Time
}

// An item represents a value with expiration time.
type item[V any] struct {
	data    V
	expires int64
}

// New creates a new cache. Entries stored with a zero duration live for
// defaultDuration. Expired entries are dropped lazily on read and swept
// every so many writes.
func New[V any](defaultDuration time.Duration) *Cache[V] {

	if defaultDuration <= 0 {
		defaultDuration = 10 * time.Minute
	}

	return &Cache[V]{
		defaultDuration: defaultDuration,
		now:             time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (cache *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	cache.now = now
	return cache
}

// Set sets a value for the given key with an expiration duration.
// A zero duration means the default; a negative one stores it forever.
func (cache *Cache[V]) Set(key string, value V, duration time.Duration) {
	cache.items.Store(key, cache.newItem(value, duration))
	cache.wrote()
}

// GetOrSet returns the live value for key. When there is none, it stores the
// value made by create, unless a concurrent caller stored one first.
// loaded reports whether the returned value was already there.
func (cache *Cache[V]) GetOrSet(key string, create func() V, duration time.Duration) (value V, loaded bool) {
	if v, ok := cache.Get(key); ok {
		return v, true
	}

	it := cache.newItem(create(), duration)
	for {
		actual, found := cache.items.LoadOrStore(key, it)
		if !found {
			cache.wrote()
			return it.data, false
		}
		old := actual.(*item[V])
		if !cache.expired(old) {
			return old.data, true
		}
		if cache.items.CompareAndSwap(key, old, it) {
			cache.wrote()
			return it.data, false
		}
	}
}

// Get gets the value for the given key.
func (cache *Cache[V]) Get(key string) (V, bool) {
	var zero V

	obj, exists := cache.items.Load(key)
	if !exists {
		return zero, false
	}

	it := obj.(*item[V])

	if cache.expired(it) {
		cache.items.CompareAndDelete(key, it)
		return zero, false
	}

	return it.data, true
}

// DeleteExpired removes every expired entry.
func (cache *Cache[V]) DeleteExpired() {
	cache.items.Range(func(key, value any) bool {
		if it := value.(*item[V]); cache.expired(it) {
			cache.items.CompareAndDelete(key, it)
		}
		return true
	})
}

// Delete deletes the key and its value from the cache.
func (cache *Cache[V]) Delete(key string) {
	cache.items.Delete(key)
}

// Len counts the entries currently held, expired or not.
func (cache *Cache[V]) Len() int {
	n := 0
	cache.items.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (cache *Cache[V]) newItem(value V, duration time.Duration) *item[V] {
	var expires int64

	if duration == 0 {
		duration = cache.defaultDuration
	}

	if duration > 0 {
		expires = cache.now().Add(duration).UnixNano()
	}

	return &item[V]{data: value, expires: expires}
}

func (cache *Cache[V]) expired(it *item[V]) bool {
	return it.expires > 0 && cache.now().UnixNano() > it.expires
}

// wrote counts a write and sweeps every sweepEvery of them.
func (cache *Cache[V]) wrote() {
	if cache.counter.Add(1) >= sweepEvery {
		cache.DeleteExpired()
		cache.counter.Store(0)
	}
}
