package kvstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bootlin/elixir/internal/logx"
)

// CachedBucket is the "cached variant" of spec §4.1: a in-memory LRU of
// decoded values in front of one bucket, used by the update pipeline for
// Defs/Refs/Docs (and Comps/CompsDocs when DT support is enabled) where
// the same key is read-modify-written many times per tag. Writes land in
// the cache; an evicted dirty entry is written back immediately; Sync
// flushes every remaining dirty entry.
//
// Each pipeline stage builds its own CachedBucket against a Bucket of
// that stage's Update transaction and Syncs it before the transaction
// commits (the update pipeline is the sole writer, spec §5) — eviction
// writebacks never race a reader transaction.
type CachedBucket[T any] struct {
	mu     sync.Mutex
	inner  Bucket
	cache  *lru.Cache
	decode func([]byte) (T, error)
	encode func(T) []byte
	log    *logx.Logger
}

type cacheEntry[T any] struct {
	value T
	dirty bool
}

// NewCachedBucket wraps inner with an LRU of at most entries decoded
// values. decode/encode are the bucket's content codec (e.g.
// xrefdata.ParseDefList / DefList.Pack).
func NewCachedBucket[T any](inner Bucket, entries int, decode func([]byte) (T, error), encode func(T) []byte) *CachedBucket[T] {
	c := &CachedBucket[T]{inner: inner, decode: decode, encode: encode, log: logx.With("component", "kvstore.cache")}
	cache, err := lru.NewWithEvict(entries, func(key interface{}, value interface{}) {
		c.writeBack(key.(string), value.(*cacheEntry[T]))
	})
	if err != nil {
		// Only possible cause is a non-positive size, a programmer error.
		panic(err)
	}
	c.cache = cache
	return c
}

// writeBack persists a dirty entry to the underlying bucket. Called
// either from the LRU's eviction callback or from Sync.
func (c *CachedBucket[T]) writeBack(key string, e *cacheEntry[T]) {
	if !e.dirty {
		return
	}
	if err := c.inner.Put([]byte(key), c.encode(e.value)); err != nil {
		c.log.Error("write-behind cache flush failed", "key", key, "err", err)
		return
	}
	e.dirty = false
}

// Get returns the decoded value for key, loading and caching it from the
// underlying bucket on a cache miss.
func (c *CachedBucket[T]) Get(key []byte) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := string(key)
	if v, ok := c.cache.Get(k); ok {
		e := v.(*cacheEntry[T])
		return e.value, true, nil
	}

	var zero T
	raw, found, err := c.inner.Get(key)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, nil
	}
	val, err := c.decode(raw)
	if err != nil {
		return zero, false, err
	}
	c.cache.Add(k, &cacheEntry[T]{value: val})
	return val, true, nil
}

// GetOrNew is Get, but returns a freshly constructed zero value (via
// newFn) instead of (zero, false) on a miss — the read-modify-write
// idiom the Defs/Refs/Docs stages use on every append.
func (c *CachedBucket[T]) GetOrNew(key []byte, newFn func() T) (T, error) {
	v, found, err := c.Get(key)
	if err != nil {
		var zero T
		return zero, err
	}
	if found {
		return v, nil
	}
	return newFn(), nil
}

// Put marks value dirty in the cache; it is not necessarily written to
// the underlying bucket until evicted or Sync is called.
func (c *CachedBucket[T]) Put(key []byte, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(string(key), &cacheEntry[T]{value: value, dirty: true})
}

// Sync flushes every dirty entry currently resident in the cache (spec
// §4.1: "sync flushes the whole cache").
func (c *CachedBucket[T]) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.cache.Keys() {
		v, ok := c.cache.Peek(k)
		if !ok {
			continue
		}
		c.writeBack(k.(string), v.(*cacheEntry[T]))
	}
}
