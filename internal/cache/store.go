// Package cache holds the in-process view cache: one entry per view
// identity, last-writer-wins on refetch, explicit staleness instead of
// framework-managed invalidation.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	data      any
	fetchedAt time.Time
	stale     bool
}

// Store maps view keys to their most recent snapshot.
type Store struct {
	entries mapCache[Key, entry]
}

func NewStore() *Store {
	return &Store{}
}

// Put records a fresh snapshot for key, clearing any stale mark.
// Concurrent writers race benignly: the last one wins.
func (s *Store) Put(key Key, data any) {
	s.entries.set(key, entry{data: data, fetchedAt: time.Now(), stale: false})
}

// Get returns the cached snapshot for key. ok is false when the entry is
// missing or has been marked stale; a stale entry must never be served.
func (s *Store) Get(key Key) (data any, fetchedAt time.Time, ok bool) {
	e, found := s.entries.get(key)
	if !found || e.stale {
		return nil, time.Time{}, false
	}
	return e.data, e.fetchedAt, true
}

// MarkStale flags entries so the next access refetches instead of
// returning old data. Missing entries are ignored.
func (s *Store) MarkStale(keys ...Key) {
	for _, key := range keys {
		if e, found := s.entries.get(key); found {
			e.stale = true
			s.entries.set(key, e)
		}
	}
}

// Evict drops the entry entirely; used when the last reference to a view
// goes away.
func (s *Store) Evict(key Key) { s.entries.delete(key) }

func (s *Store) Clear() { s.entries.clear() }

// mapCache types the untyped sync.Map. The zero value is ready to use.
type mapCache[K comparable, V any] struct{ m sync.Map }

func (c *mapCache[K, V]) set(k K, v V) { c.m.Store(k, v) }

func (c *mapCache[K, V]) get(k K) (V, bool) {
	v, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (c *mapCache[K, V]) delete(k K) { c.m.Delete(k) }

func (c *mapCache[K, V]) clear() {
	c.m.Range(func(k, _ any) bool { c.m.Delete(k); return true })
}
