package domain

import "context"

// MessageLog is the remote append-only message log of every conversation.
type MessageLog interface {
	AppendMessage(ctx context.Context, msg *Message) error
	// WatchMessages subscribes to a conversation's messages ordered by
	// creation time ascending. limit <= 0 means no limit.
	WatchMessages(ctx context.Context, id ConversationID, limit int) (Stream[*Message], error)
}

// ConversationStore holds conversation summaries.
type ConversationStore interface {
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)
	// UpdateSummary upserts the summary fields and the participant pair of conv.
	UpdateSummary(ctx context.Context, conv *Conversation) error
}

// ProfileStore reads participant profiles. A missing profile is ErrNotFound.
type ProfileStore interface {
	GetProfile(ctx context.Context, id UserID) (*ParticipantProfile, error)
}

// BookingLedger persists booking requests in named ledgers.
type BookingLedger interface {
	AppendBookingRequest(ctx context.Context, ledger Ledger, req *BookingRequest) error
	ListBookingRequests(ctx context.Context, ledger Ledger, filter BookingFilter) ([]*BookingRequest, error)
}

// ListingFeed exposes the newest rental listings as a live query.
type ListingFeed interface {
	// WatchLatestListings subscribes to listings ordered by timestamp descending.
	WatchLatestListings(ctx context.Context, limit int) (Stream[*Listing], error)
}

// SessionProvider answers who is signed in. It never blocks.
type SessionProvider interface {
	CurrentUser() (User, bool)
}

// Notifier schedules a local notification right away. Delivery is not confirmed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
