package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const minMetricTTL = 5 * time.Second

// MetricTTL returns how long the datapoints of a metric with the given period stay fresh
func MetricTTL(periodInSeconds int) time.Duration {
	ttl := time.Duration(periodInSeconds-10) * time.Second
	if ttl < minMetricTTL {
		return minMetricTTL
	}

	return ttl
}

type entry[V any] struct {
	value  V
	expiry time.Time
}

// ttlCache memoizes values per key until their expiry. Concurrent misses on the same key share
// a single fetch. Expired entries are dropped when they are next accessed or on the next store.
type ttlCache[V any] struct {
	mut     sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group
	now     func() time.Time
}

// NewTTLCache creates an empty cache
func NewTTLCache[V any]() *ttlCache[V] {
	return &ttlCache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// GetOrFetch returns the cached value or calls fetch, at most once per key at a time.
// Errors are returned to every waiting caller and are not cached.
func (c *ttlCache[V]) GetOrFetch(key string, ttl time.Duration, fetch func() (V, error)) (V, error) {
	value, found := c.get(key)
	if found {
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		cached, isCached := c.get(key)
		if isCached {
			return cached, nil
		}

		fetched, errFetch := fetch()
		if errFetch != nil {
			return nil, errFetch
		}

		c.set(key, fetched, ttl)
		return fetched, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	value, _ = result.(V)
	return value, nil
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mut.Lock()
	defer c.mut.Unlock()

	e, found := c.entries[key]
	if !found {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiry) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}

	return e.value, true
}

// set stores the value and drops every expired entry, so keys that are never read again do not pile up
func (c *ttlCache[V]) set(key string, value V, ttl time.Duration) {
	c.mut.Lock()
	defer c.mut.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiry) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = entry[V]{
		value:  value,
		expiry: now.Add(ttl),
	}
}

// Len returns the number of stored entries, expired ones included until they are accessed or a new
// value is stored
func (c *ttlCache[V]) Len() int {
	c.mut.Lock()
	defer c.mut.Unlock()

	return len(c.entries)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (c *ttlCache[V]) IsInterfaceNil() bool {
	return c == nil
}

// passThrough is used when caching is disabled: every call goes upstream
type passThrough[V any] struct{}

// NewPassThrough creates a cache that never stores anything
func NewPassThrough[V any]() *passThrough[V] {
	return &passThrough[V]{}
}

// GetOrFetch always calls fetch
func (pt *passThrough[V]) GetOrFetch(_ string, _ time.Duration, fetch func() (V, error)) (V, error) {
	return fetch()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (pt *passThrough[V]) IsInterfaceNil() bool {
	return pt == nil
}
