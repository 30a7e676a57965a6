// Package watch fans store changes out to path-scoped subscribers.
// Engines call Notify after each committed write (or Refresh on a timer when
// they cannot observe foreign writes); every related subscriber is handed a
// freshly fetched snapshot of its whole subtree.
package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trezcool/hazira/core"
)

// FetchFunc reads the current snapshot at path.
type FetchFunc func(ctx context.Context, path string) (core.Snapshot, error)

type Hub struct {
	fetch  FetchFunc
	logger core.Logger
	seq    atomic.Uint64

	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func NewHub(fetch FetchFunc, logger core.Logger) *Hub {
	return &Hub{
		fetch:  fetch,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

type subscription struct {
	hub  *Hub
	path string
	fn   core.SnapshotFunc

	mu         sync.Mutex
	lastSeq    uint64
	last       core.Snapshot
	delivered  bool
	pending    core.Snapshot
	hasPending bool
	delivering bool
	closed     bool
}

var _ core.Subscription = (*subscription)(nil)

// Subscribe registers fn on path and delivers the current snapshot before returning.
// The subscription ends with Unsubscribe or when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, path string, fn core.SnapshotFunc) (core.Subscription, error) {
	sub := &subscription{hub: h, path: path, fn: fn}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	seq := h.seq.Add(1)
	snap, err := h.fetch(ctx, path)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	sub.deliver(seq, snap)

	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub, nil
}

// Notify refreshes every subscriber whose path is related to the changed one.
func (h *Hub) Notify(ctx context.Context, changed string) {
	for _, sub := range h.related(changed) {
		h.refresh(ctx, sub)
	}
}

// Refresh refetches every subscriber.
func (h *Hub) Refresh(ctx context.Context) {
	for _, sub := range h.related("") {
		h.refresh(ctx, sub)
	}
}

// Poll calls Refresh every interval until ctx is done.
func (h *Hub) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscription]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

func (h *Hub) related(changed string) []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		if core.RelatedPaths(sub.path, changed) {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (h *Hub) refresh(ctx context.Context, sub *subscription) {
	seq := h.seq.Add(1)
	snap, err := h.fetch(ctx, sub.path)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn(fmt.Sprintf("refreshing subscription on %q", sub.path), err)
		}
		return
	}
	sub.deliver(seq, snap)
}

// deliver hands snap to the subscriber unless a newer fetch already went through
// or nothing changed since the last delivery. fn is never run concurrently with
// itself; snapshots arriving while it runs (including from fn itself) are
// delivered right after it returns, newest only.
func (sub *subscription) deliver(seq uint64, snap core.Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed || seq <= sub.lastSeq {
		return
	}
	sub.lastSeq = seq
	sub.pending, sub.hasPending = snap, true
	if sub.delivering {
		return
	}

	sub.delivering = true
	for sub.hasPending && !sub.closed {
		next := sub.pending
		sub.pending, sub.hasPending = nil, false
		if sub.delivered && sub.last.Equal(next) {
			continue
		}
		sub.last, sub.delivered = next, true

		sub.mu.Unlock()
		sub.fn(next)
		sub.mu.Lock()
	}
	sub.delivering = false
}

func (sub *subscription) Unsubscribe() {
	sub.hub.mu.Lock()
	delete(sub.hub.subs, sub)
	sub.hub.mu.Unlock()
	sub.close()
}

func (sub *subscription) close() {
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
}
