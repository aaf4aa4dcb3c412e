// Package cache provides a small TTL lookup cache for values that are read
// often and change rarely, such as role ids.
//
// Entries expire after their TTL and can be invalidated explicitly when the
// underlying row changes. Concurrent misses for the same key are collapsed
// into a single load.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches the value for key from the source of truth.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Entry is a cached value together with the time it was loaded.
type Entry[V any] struct {
	Value    V
	LoadedAt time.Time
}

// Lookup is safe for concurrent use.
type Lookup[V any] struct {
	store *gocache.Cache
	ttl   time.Duration
	load  LoadFunc[V]
	group singleflight.Group
	now   func() time.Time
}

// NewLookup creates a Lookup whose entries live for ttl. Expired entries are
// swept every two TTLs.
func NewLookup[V any](ttl time.Duration, load LoadFunc[V]) *Lookup[V] {
	return &Lookup[V]{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		load:  load,
		now:   time.Now,
	}
}

// Get returns the cached value for key, loading it on a miss. Load errors are
// returned to every waiting caller and not cached.
func (l *Lookup[V]) Get(ctx context.Context, key string) (V, error) {
	if e, ok := l.Peek(key); ok {
		return e.Value, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if e, ok := l.Peek(key); ok {
			return e.Value, nil
		}
		val, err := l.load(ctx, key)
		if err != nil {
			return nil, err
		}
		l.store.Set(key, Entry[V]{Value: val, LoadedAt: l.now()}, l.ttl)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek returns the cached entry without loading.
func (l *Lookup[V]) Peek(key string) (Entry[V], bool) {
	raw, ok := l.store.Get(key)
	if !ok {
		return Entry[V]{}, false
	}
	return raw.(Entry[V]), true
}

// Invalidate drops key so the next Get reloads it.
func (l *Lookup[V]) Invalidate(key string) {
	l.store.Delete(key)
}

// Flush drops every entry.
func (l *Lookup[V]) Flush() {
	l.store.Flush()
}
