// Package views schedules the polled read surfaces. Each registered view
// runs its own poll ticker while referenced; invalidation marks the cached
// entry stale and forces an immediate refetch ahead of the timer's next
// tick.
package views

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/market-dashboard/internal/cache"
)

// FetchFunc loads one view from the backend.
type FetchFunc func(ctx context.Context) (any, error)

// UpdateFunc observes every snapshot stored into the cache.
type UpdateFunc func(key cache.Key, data any)

type viewState struct {
	fetch  FetchFunc
	refs   int
	cancel context.CancelFunc
	kick   chan struct{}
}

type Registry struct {
	store    *cache.Store
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	active map[cache.Key]*viewState
	subs   []UpdateFunc
}

func New(store *cache.Store, interval time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		store:    store,
		interval: interval,
		log:      log,
		active:   make(map[cache.Key]*viewState),
	}
}

// Subscribe registers an observer for view updates. Must be called before
// the first Register.
func (r *Registry) Subscribe(fn UpdateFunc) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Register adds a reference to key. The first reference starts the poll
// loop, which fetches immediately and then on every interval tick.
func (r *Registry) Register(key cache.Key, fetch FetchFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.active[key]; ok {
		st.refs++
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	st := &viewState{
		fetch:  fetch,
		refs:   1,
		cancel: cancel,
		kick:   make(chan struct{}, 1),
	}
	r.active[key] = st
	go r.poll(ctx, key, st)
}

// Release drops a reference. When the last reference goes, the poll loop
// stops and the cache entry is evicted. In-flight fetches are not aborted;
// their results are discarded on arrival.
func (r *Registry) Release(key cache.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.active[key]
	if !ok {
		return
	}
	st.refs--
	if st.refs > 0 {
		return
	}
	st.cancel()
	delete(r.active, key)
	r.store.Evict(key)
}

// Invalidate marks every key stale and kicks an immediate refetch for each
// currently-active view, superseding its poll timer.
func (r *Registry) Invalidate(keys ...cache.Key) {
	r.store.MarkStale(keys...)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		if st, ok := r.active[key]; ok {
			select {
			case st.kick <- struct{}{}:
			default:
			}
		}
	}
}

// Get serves key cache-first: a fresh entry is returned as-is, a missing or
// stale one triggers a synchronous refetch through the view's fetch func.
func (r *Registry) Get(ctx context.Context, key cache.Key) (any, error) {
	if data, _, ok := r.store.Get(key); ok {
		return data, nil
	}
	r.mu.Lock()
	st, ok := r.active[key]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("view %s/%s is not registered", key.View, key.UserID)
	}
	data, err := st.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if r.put(key, st, data) {
		r.notify(key, data)
	}
	return data, nil
}

// Close stops every poll loop and empties the cache.
func (r *Registry) Close() {
	r.mu.Lock()
	for key, st := range r.active {
		st.cancel()
		delete(r.active, key)
	}
	r.mu.Unlock()
	r.store.Clear()
}

func (r *Registry) poll(ctx context.Context, key cache.Key, st *viewState) {
	r.refresh(ctx, key, st)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.refresh(ctx, key, st)
		case <-st.kick:
			r.refresh(ctx, key, st)
			t.Reset(r.interval)
		}
	}
}

func (r *Registry) refresh(ctx context.Context, key cache.Key, st *viewState) {
	data, err := st.fetch(ctx)
	if err != nil {
		r.log.Warn("view refresh failed",
			zap.String("view", string(key.View)),
			zap.String("user_id", key.UserID),
			zap.Error(err),
		)
		return
	}
	if r.put(key, st, data) {
		r.notify(key, data)
	}
}

// put stores a fetched snapshot, but only while st is still the registered
// state for key. A fetch that completes after (or concurrently with) the
// final Release must not resurrect an evicted entry, so the activation
// check and the store happen under the same lock Release uses.
func (r *Registry) put(key cache.Key, st *viewState, data any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[key] != st {
		return false
	}
	r.store.Put(key, data)
	return true
}

func (r *Registry) notify(key cache.Key, data any) {
	r.mu.Lock()
	subs := make([]UpdateFunc, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()
	for _, fn := range subs {
		fn(key, data)
	}
}

// Rows fetches key through reg and asserts the snapshot's element type.
func Rows[T any](ctx context.Context, reg *Registry, key cache.Key) (T, error) {
	var zero T
	data, err := reg.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	rows, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("view %s holds %T", key.View, data)
	}
	return rows, nil
}
