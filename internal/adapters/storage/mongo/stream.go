package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// changeStream emulates a snapshot listener: it delivers the full query
// result first, then re-runs the query after every matching change event
// and reports the difference against the previous result.
type changeStream[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	cs     eventCursor
	load   func(context.Context) ([]T, error)
	key    func(T) string
	same   func(a, b T) bool

	last   map[string]T
	primed bool
	done   bool
}

// eventCursor is the part of *mongo.ChangeStream a stream uses.
type eventCursor interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

// watchCollection opens the change stream before the first read so that no
// write between the two is missed.
func watchCollection[T any](
	ctx context.Context,
	coll *mongo.Collection,
	pipeline mongo.Pipeline,
	load func(context.Context) ([]T, error),
	key func(T) string,
	same func(a, b T) bool,
) (*changeStream[T], error) {
	sctx, cancel := context.WithCancel(ctx)

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := coll.Watch(sctx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo watch %s: %w", coll.Name(), err)
	}

	return newChangeStream(sctx, cancel, cs, load, key, same), nil
}

func newChangeStream[T any](
	ctx context.Context,
	cancel context.CancelFunc,
	cs eventCursor,
	load func(context.Context) ([]T, error),
	key func(T) string,
	same func(a, b T) bool,
) *changeStream[T] {
	return &changeStream[T]{
		ctx:    ctx,
		cancel: cancel,
		cs:     cs,
		load:   load,
		key:    key,
		same:   same,
		last:   make(map[string]T),
	}
}

// Next fails at most once: any error closes the change stream and later
// calls report ErrStreamClosed.
func (s *changeStream[T]) Next() (*domain.Batch[T], error) {
	if s.done {
		return nil, domain.ErrStreamClosed
	}

	if !s.primed {
		s.primed = true
		return s.snapshot()
	}

	for {
		if !s.cs.Next(s.ctx) {
			err := s.cs.Err()
			closed := err == nil || s.ctx.Err() != nil || errors.Is(err, context.Canceled)
			s.close()
			if closed {
				return nil, domain.ErrStreamClosed
			}
			return nil, fmt.Errorf("mongo change stream: %w", err)
		}

		b, err := s.snapshot()
		if err != nil {
			return nil, err
		}
		if len(b.Changes) > 0 {
			return b, nil
		}
	}
}

func (s *changeStream[T]) Stop() {
	s.cancel()
}

func (s *changeStream[T]) close() {
	s.done = true
	s.cancel()
	_ = s.cs.Close(context.Background())
}

func (s *changeStream[T]) snapshot() (*domain.Batch[T], error) {
	items, err := s.load(s.ctx)
	if err != nil {
		closed := s.ctx.Err() != nil
		s.close()
		if closed {
			return nil, domain.ErrStreamClosed
		}
		return nil, fmt.Errorf("mongo snapshot: %w", err)
	}

	next := make(map[string]T, len(items))
	var changes []domain.Change[T]
	for _, it := range items {
		k := s.key(it)
		next[k] = it
		prev, ok := s.last[k]
		switch {
		case !ok:
			changes = append(changes, domain.Change[T]{Kind: domain.ChangeAdded, Item: it})
		case !s.same(prev, it):
			changes = append(changes, domain.Change[T]{Kind: domain.ChangeModified, Item: it})
		}
	}
	for k, it := range s.last {
		if _, ok := next[k]; !ok {
			changes = append(changes, domain.Change[T]{Kind: domain.ChangeRemoved, Item: it})
		}
	}
	s.last = next

	return &domain.Batch[T]{Items: items, Changes: changes, ReadAt: time.Now()}, nil
}
