// Package state holds the derived view state shown by the display layer.
//
// A holder combines two independent producers, the live snapshot
// subscription and local filter edits, into one recomputed view and pushes
// every new view to its observers.
package state

import (
	"context"
	"errors"
	"sync"

	"gameshelf/backend"
	"gameshelf/internal/cache"
	"gameshelf/internal/utils"
)

// holder is the subscription and observer machinery shared by the state
// types. T is the document type, V the view value handed to observers.
type holder[T, V any] struct {
	subscribe func(ctx context.Context, ownerID string) *backend.Subscription[T]
	// recompute and view run with mu held
	recompute func(items []T)
	view      func() V
	// persistence hooks are optional
	preload func(ownerID string) ([]T, bool)
	persist func(ownerID string, items []T)

	// emitMu orders notifications the same way as the mutations behind them
	emitMu sync.Mutex

	mu        sync.Mutex
	cache     *cache.Snapshot[T]
	loading   bool
	errMsg    string
	ownerID   string
	sub       *backend.Subscription[T]
	gen       uint64
	closed    bool
	observers map[int]func(V)
	nextObs   int
}

func newHolder[T, V any](subscribe func(context.Context, string) *backend.Subscription[T]) *holder[T, V] {
	return &holder[T, V]{
		subscribe: subscribe,
		cache:     cache.New[T](),
		observers: make(map[int]func(V)),
	}
}

// update runs fn under the state lock and notifies observers with the
// resulting view. fn returning false skips the notification.
func (h *holder[T, V]) update(fn func() bool) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	if h.closed || !fn() {
		h.mu.Unlock()
		return
	}
	v := h.view()
	observers := h.observerList()
	h.mu.Unlock()

	for _, fn := range observers {
		fn(v)
	}
}

// load releases the current subscription and subscribes for ownerID. The
// cache is cleared, or seeded from the persisted snapshot when one exists.
func (h *holder[T, V]) load(ctx context.Context, ownerID string) {
	var gen uint64
	var old *backend.Subscription[T]
	h.update(func() bool {
		old = h.sub
		h.sub = nil
		h.gen++
		gen = h.gen
		h.ownerID = ownerID
		h.loading = true
		h.errMsg = ""
		h.cache.Clear()
		if h.preload != nil {
			if items, ok := h.preload(ownerID); ok {
				h.cache.Replace(items)
			}
		}
		h.recompute(h.cache.Items())
		return true
	})
	if old != nil {
		old.Close()
	}

	sub := h.subscribe(ctx, ownerID)

	h.mu.Lock()
	if h.closed || h.gen != gen {
		h.mu.Unlock()
		sub.Close()
		return
	}
	h.sub = sub
	h.mu.Unlock()

	utils.Debugf("subscribed to %s", ownerID)
	go h.consume(sub)
}

func (h *holder[T, V]) consume(sub *backend.Subscription[T]) {
	for snap := range sub.C() {
		h.apply(sub, snap)
	}
}

// apply folds one snapshot into the state. Snapshots from a released
// subscription are dropped.
func (h *holder[T, V]) apply(sub *backend.Subscription[T], snap backend.Snapshot[T]) {
	var owner string
	h.update(func() bool {
		if h.sub != sub {
			return false
		}
		h.loading = false
		if snap.Err != nil {
			h.errMsg = snap.Err.Error()
			return true
		}
		h.cache.Replace(snap.Items)
		h.recompute(h.cache.Items())
		owner = h.ownerID
		return true
	})
	if owner != "" && snap.Err == nil && h.persist != nil {
		h.persist(owner, snap.Items)
	}
}

// recomputeWith applies a filter edit. It never touches the store.
func (h *holder[T, V]) recomputeWith(edit func()) {
	h.update(func() bool {
		edit()
		h.recompute(h.cache.Items())
		return true
	})
}

func (h *holder[T, V]) setError(msg string) {
	h.update(func() bool {
		h.errMsg = msg
		return true
	})
}

func (h *holder[T, V]) owner() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ownerID
}

func (h *holder[T, V]) cacheItems() []T {
	return h.cache.Items()
}

// synced reports whether a live snapshot has replaced the cache since the
// last load.
func (h *holder[T, V]) synced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sub != nil && !h.loading
}

// errClosed is returned when waiting on a holder that was closed.
var errClosed = errors.New("state holder closed")

// wait blocks until the first snapshot after the last load has been applied.
func (h *holder[T, V]) wait(ctx context.Context) error {
	ready := make(chan struct{}, 1)
	cancel := h.observe(func(V) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if closed {
			return errClosed
		}
		if h.synced() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		}
	}
}

func (h *holder[T, V]) current() V {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view()
}

func (h *holder[T, V]) observe(fn func(V)) func() {
	h.mu.Lock()
	id := h.nextObs
	h.nextObs++
	h.observers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.observers, id)
		h.mu.Unlock()
	}
}

func (h *holder[T, V]) observerList() []func(V) {
	out := make([]func(V), 0, len(h.observers))
	for i := 0; i < h.nextObs; i++ {
		if fn, ok := h.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// close releases the subscription. No recompute or notification happens
// afterwards.
func (h *holder[T, V]) close() {
	h.emitMu.Lock()
	h.mu.Lock()
	h.closed = true
	sub := h.sub
	h.sub = nil
	h.mu.Unlock()
	h.emitMu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// writeMessage renders a failed write for the error message field. The
// suggestion part of user-facing errors is left out.
func writeMessage(action string, err error) string {
	var ews *utils.ErrorWithSuggestion
	if errors.As(err, &ews) {
		err = ews.Err
	}
	return "failed to " + action + ": " + err.Error()
}
