package lecture

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

var ErrBoardClosed = errors.New("board is not open")

// Board is an operator session over the lecture counters.
//
// It holds one snapshot of the counter and marker trees. Every store delivery
// replaces that snapshot wholesale, so local adjustments not yet saved are lost
// when another writer changes the counters. Adjust only changes the session
// copy; Save persists it.
type Board struct {
	svc    *Service
	logger core.Logger

	mu       sync.RWMutex
	counters CounterTree
	markers  Markers
	subs     []core.Subscription
	onChange []func()
	open     bool
}

func NewBoard(svc *Service, logger core.Logger) *Board {
	return &Board{
		svc:      svc,
		logger:   logger,
		counters: make(CounterTree),
		markers:  make(Markers),
	}
}

// Open subscribes to the counter and marker trees. The board is up to date when Open returns.
func (b *Board) Open(ctx context.Context) error {
	b.mu.Lock()
	if b.open {
		b.mu.Unlock()
		return nil
	}
	b.open = true
	b.mu.Unlock()

	onErr := func(err error) {
		if b.logger != nil {
			b.logger.Error("decoding board delivery", err)
		}
	}

	csub, err := b.svc.SubscribeCounters(ctx, b.replaceCounters, onErr)
	if err != nil {
		b.Close()
		return err
	}
	b.addSub(csub)

	msub, err := b.svc.SubscribeMarkers(ctx, b.replaceMarkers, onErr)
	if err != nil {
		b.Close()
		return err
	}
	b.addSub(msub)
	return nil
}

func (b *Board) addSub(sub core.Subscription) {
	b.mu.Lock()
	closed := !b.open
	if !closed {
		b.subs = append(b.subs, sub)
	}
	b.mu.Unlock()
	if closed {
		sub.Unsubscribe()
	}
}

// Close ends the store subscriptions. It is safe to call more than once.
func (b *Board) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.open = false
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// OnChange registers fn to be called after each snapshot replacement or local adjustment.
func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

func (b *Board) changed() {
	b.mu.RLock()
	fns := make([]func(), len(b.onChange))
	copy(fns, b.onChange)
	b.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (b *Board) replaceCounters(counters CounterTree) {
	b.mu.Lock()
	b.counters = counters
	b.mu.Unlock()
	b.changed()
}

func (b *Board) replaceMarkers(markers Markers) {
	b.mu.Lock()
	b.markers = markers
	b.mu.Unlock()
	b.changed()
}

// Counters returns every counter of the session, sorted.
func (b *Board) Counters() []Counter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counters.All()
}

// Active returns the counters of the active subjects.
func (b *Board) Active() []Counter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ActiveCounters(b.counters, b.markers)
}

func (b *Board) Markers() Markers {
	b.mu.RLock()
	defer b.mu.RUnlock()
	markers := make(Markers, len(b.markers))
	for _, sems := range b.markers {
		for _, row := range sems {
			markers.Put(row)
		}
	}
	return markers
}

func (b *Board) Counter(k CounterKey) (Counter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counters.Get(k)
}

// Adjust moves the session copy of a counter by delta without writing it.
func (b *Board) Adjust(k CounterKey, delta int) (Counter, error) {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return Counter{}, ErrBoardClosed
	}
	c, ok := b.counters.Get(k)
	if !ok {
		b.mu.Unlock()
		return Counter{}, ErrCounterNotFound
	}
	next, err := AdjustCount(c, delta)
	if err != nil {
		b.mu.Unlock()
		return Counter{}, err
	}
	b.counters = b.counters.with(next)
	b.mu.Unlock()

	b.changed()
	return next, nil
}

// Save persists the session copy of a counter. The session is left as it is on failure.
func (b *Board) Save(ctx context.Context, k CounterKey) (Counter, error) {
	b.mu.RLock()
	open := b.open
	c, ok := b.counters.Get(k)
	b.mu.RUnlock()
	if !open {
		return Counter{}, ErrBoardClosed
	}
	if !ok {
		return Counter{}, ErrCounterNotFound
	}
	if err := b.svc.Persist(ctx, c); err != nil {
		return Counter{}, err
	}
	return c, nil
}

// Activate marks the selected catalog entry as the current subject of its semester.
// The board picks the change up from its subscriptions.
func (b *Board) Activate(ctx context.Context, act Activation) (SubjectRow, Counter, error) {
	b.mu.RLock()
	open := b.open
	b.mu.RUnlock()
	if !open {
		return SubjectRow{}, Counter{}, ErrBoardClosed
	}
	return b.svc.ActivateSelection(ctx, act)
}

// with returns a copy of t holding c. Delivered trees are shared with readers,
// so they are never mutated in place.
func (t CounterTree) with(c Counter) CounterTree {
	clone := make(CounterTree, len(t))
	for _, sems := range t {
		for _, subjects := range sems {
			for _, existing := range subjects {
				clone.Put(existing)
			}
		}
	}
	clone.Put(c)
	return clone
}
