package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/PabloGalante/rentchat/internal/domain"
)

type fakeCursor struct {
	events int
	err    error
	closed int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.events == 0 {
		return false
	}
	c.events--
	return true
}

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close(context.Context) error {
	c.closed++
	return nil
}

func identity(s string) string { return s }

func equal(a, b string) bool { return a == b }

func TestChangeStreamDiffsQueryResults(t *testing.T) {
	results := [][]string{{"a"}, {"a", "b"}, {"b"}}
	load := func(context.Context) ([]string, error) {
		out := results[0]
		results = results[1:]
		return out, nil
	}
	cur := &fakeCursor{events: 2}
	ctx, cancel := context.WithCancel(context.Background())
	s := newChangeStream(ctx, cancel, cur, load, identity, equal)

	first, err := s.Next()
	if err != nil || len(first.Changes) != 1 || first.Changes[0].Kind != domain.ChangeAdded {
		t.Fatalf("unexpected first batch %+v, %v", first, err)
	}
	second, err := s.Next()
	if err != nil || len(second.Changes) != 1 || second.Changes[0].Item != "b" {
		t.Fatalf("unexpected second batch %+v, %v", second, err)
	}
	third, err := s.Next()
	if err != nil || len(third.Changes) != 1 || third.Changes[0].Kind != domain.ChangeRemoved {
		t.Fatalf("unexpected third batch %+v, %v", third, err)
	}

	if _, err := s.Next(); !errors.Is(err, domain.ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed at the end of events, got %v", err)
	}
	if cur.closed != 1 {
		t.Fatalf("expected the change stream to be closed, got %d", cur.closed)
	}
}

func TestChangeStreamLoadFailureClosesCursor(t *testing.T) {
	errLoad := errors.New("query failed")
	load := func(context.Context) ([]string, error) { return nil, errLoad }
	cur := &fakeCursor{events: 1}
	ctx, cancel := context.WithCancel(context.Background())
	s := newChangeStream(ctx, cancel, cur, load, identity, equal)

	if _, err := s.Next(); !errors.Is(err, errLoad) {
		t.Fatalf("expected the load error, got %v", err)
	}
	if cur.closed != 1 {
		t.Fatalf("expected the change stream to be closed, got %d", cur.closed)
	}
	if ctx.Err() == nil {
		t.Fatalf("expected the stream context to be cancelled")
	}
	if _, err := s.Next(); !errors.Is(err, domain.ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed after a failure, got %v", err)
	}
}

func TestChangeStreamCursorErrorIsReported(t *testing.T) {
	errCursor := errors.New("resume token lost")
	load := func(context.Context) ([]string, error) { return []string{"a"}, nil }
	cur := &fakeCursor{err: errCursor}
	ctx, cancel := context.WithCancel(context.Background())
	s := newChangeStream(ctx, cancel, cur, load, identity, equal)

	if _, err := s.Next(); err != nil {
		t.Fatalf("priming batch failed: %v", err)
	}
	if _, err := s.Next(); !errors.Is(err, errCursor) {
		t.Fatalf("expected the cursor error, got %v", err)
	}
	if cur.closed != 1 {
		t.Fatalf("expected the change stream to be closed, got %d", cur.closed)
	}
	if _, err := s.Next(); !errors.Is(err, domain.ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed after a failure, got %v", err)
	}
}
