package backend

import (
	"context"
	"sync"
)

// Snapshot is one full delivery of an owner's documents. Err is set when the
// query behind the snapshot failed; Items is then nil.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// Subscription receives snapshots for a single owner until it is closed.
// Only the latest snapshot is buffered: a slow reader skips stale ones.
type Subscription[T any] struct {
	ownerID string
	ch      chan Snapshot[T]
	hub     *Hub[T]

	mu     sync.Mutex
	closed bool
}

// C returns the delivery channel. It is closed when the subscription is.
func (s *Subscription[T]) C() <-chan Snapshot[T] {
	return s.ch
}

// OwnerID returns the owner this subscription is scoped to.
func (s *Subscription[T]) OwnerID() string {
	return s.ownerID
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.remove(s)
	}
}

func (s *Subscription[T]) deliver(snap Snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
	default:
		// Replace the unread snapshot with the newer one
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
}

// QueryFunc loads the current snapshot for one owner.
type QueryFunc[T any] func(ctx context.Context, ownerID string) ([]T, error)

// Hub fans full snapshots out to the subscriptions of each owner.
type Hub[T any] struct {
	query QueryFunc[T]

	mu   sync.Mutex
	subs map[string]map[*Subscription[T]]struct{}

	// publishMu keeps query+deliver atomic so snapshots never arrive out of order
	publishMu sync.Mutex
}

// NewHub creates a hub that uses query to build snapshots.
func NewHub[T any](query QueryFunc[T]) *Hub[T] {
	return &Hub[T]{
		query: query,
		subs:  make(map[string]map[*Subscription[T]]struct{}),
	}
}

// Subscribe registers a subscription for ownerID and delivers the initial
// snapshot before returning. The subscription is closed when ctx is done.
func (h *Hub[T]) Subscribe(ctx context.Context, ownerID string) *Subscription[T] {
	sub := &Subscription[T]{
		ownerID: ownerID,
		ch:      make(chan Snapshot[T], 1),
		hub:     h,
	}

	h.publishMu.Lock()
	h.mu.Lock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*Subscription[T]]struct{})
	}
	h.subs[ownerID][sub] = struct{}{}
	h.mu.Unlock()

	items, err := h.query(ctx, ownerID)
	sub.deliver(Snapshot[T]{Items: items, Err: err})
	h.publishMu.Unlock()

	context.AfterFunc(ctx, sub.Close)
	return sub
}

// Publish re-queries ownerID and delivers the result to its subscriptions.
// It is a no-op when nobody is subscribed.
func (h *Hub[T]) Publish(ctx context.Context, ownerID string) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	targets := h.subscribers(ownerID)
	if len(targets) == 0 {
		return
	}

	items, err := h.query(ctx, ownerID)
	for _, sub := range targets {
		sub.deliver(Snapshot[T]{Items: items, Err: err})
	}
}

// PublishAll refreshes every owner that has at least one subscription.
func (h *Hub[T]) PublishAll(ctx context.Context) {
	h.mu.Lock()
	owners := make([]string, 0, len(h.subs))
	for owner := range h.subs {
		owners = append(owners, owner)
	}
	h.mu.Unlock()

	for _, owner := range owners {
		h.Publish(ctx, owner)
	}
}

// SubscriberCount returns the number of open subscriptions for ownerID.
func (h *Hub[T]) SubscriberCount(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

// Close closes every open subscription.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	var all []*Subscription[T]
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

func (h *Hub[T]) subscribers(ownerID string) []*Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[ownerID]
	out := make([]*Subscription[T], 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (h *Hub[T]) remove(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.ownerID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.ownerID)
	}
}
