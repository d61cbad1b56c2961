package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// feed is an in-process live query. Every publish delivers the full result
// set plus the changes computed against the previously delivered one.
type feed[T any] struct {
	ctx   context.Context
	key   func(T) string
	same  func(a, b T) bool
	limit int

	mu        sync.Mutex
	queue     []*domain.Batch[T]
	last      map[string]T
	published bool
	closed    bool

	ready    chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	onStop   func()
}

func newFeed[T any](ctx context.Context, limit int, key func(T) string, same func(a, b T) bool, onStop func()) *feed[T] {
	return &feed[T]{
		ctx:     ctx,
		key:     key,
		same:    same,
		limit:   limit,
		last:    make(map[string]T),
		ready:   make(chan struct{}, 1),
		stopped: make(chan struct{}),
		onStop:  onStop,
	}
}

// publish enqueues a batch for items, which must already be ordered.
// A publish that changes nothing for this subscriber is dropped.
func (f *feed[T]) publish(items []T, readAt time.Time) {
	if f.limit > 0 && len(items) > f.limit {
		items = items[:f.limit]
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	next := make(map[string]T, len(items))
	var changes []domain.Change[T]
	for _, it := range items {
		k := f.key(it)
		next[k] = it
		prev, ok := f.last[k]
		switch {
		case !ok:
			changes = append(changes, domain.Change[T]{Kind: domain.ChangeAdded, Item: it})
		case !f.same(prev, it):
			changes = append(changes, domain.Change[T]{Kind: domain.ChangeModified, Item: it})
		}
	}
	for k, it := range f.last {
		if _, ok := next[k]; !ok {
			changes = append(changes, domain.Change[T]{Kind: domain.ChangeRemoved, Item: it})
		}
	}

	// the first batch is always delivered, even when empty
	if len(changes) == 0 && f.published {
		f.mu.Unlock()
		return
	}
	f.published = true
	f.last = next

	out := make([]T, len(items))
	copy(out, items)
	f.queue = append(f.queue, &domain.Batch[T]{Items: out, Changes: changes, ReadAt: readAt})
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *feed[T]) Next() (*domain.Batch[T], error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return nil, domain.ErrStreamClosed
		}
		if len(f.queue) > 0 {
			b := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return b, nil
		}
		f.mu.Unlock()

		select {
		case <-f.ready:
		case <-f.stopped:
		case <-f.ctx.Done():
			f.Stop()
		}
	}
}

func (f *feed[T]) Stop() {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.queue = nil
		f.mu.Unlock()
		close(f.stopped)
		if f.onStop != nil {
			f.onStop()
		}
	})
}
