package domain

import "time"

type ConversationID string
type UserID string
type MessageID string
type BookingRequestID string
type ListingID string

type Timestamp = time.Time

// UnknownUserName is shown for participants whose profile could not be resolved.
const UnknownUserName = "Unknown User"

// DefaultSenderName is stored on outgoing messages when the session has no display name.
const DefaultSenderName = "User"

// ChangeKind describes what happened to a single item between two stream batches.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one item of a batch together with how it changed.
type Change[T any] struct {
	Kind ChangeKind
	Item T
}

// Batch is a full ordered result set delivered by a live query,
// plus the per-item changes since the previous batch.
type Batch[T any] struct {
	Items   []T
	Changes []Change[T]
	ReadAt  Timestamp
}

// Latest returns the last element of the ordered result set.
func (b *Batch[T]) Latest() (T, bool) {
	var zero T
	if b == nil || len(b.Items) == 0 {
		return zero, false
	}
	return b.Items[len(b.Items)-1], true
}

// Stream is a live subscription to a query.
// Next blocks until the next batch is available. After Stop, or once the
// subscription context ends, Next returns ErrStreamClosed.
type Stream[T any] interface {
	Next() (*Batch[T], error)
	Stop()
}
