package booking

import (
	"context"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// Inbox holds the logic of reading booking requests back from the ledgers.
type Inbox struct {
	store domain.BookingLedger
}

// NewInbox creates an inbox from a BookingLedger
func NewInbox(store domain.BookingLedger) *Inbox {
	return &Inbox{
		store: store,
	}
}

// List returns the last `limit` requests of a user in a ledger: the global
// ledger is keyed by requester, the tenant ledger by recipient.
// If limit <= 0, a reasonable default value is used.
func (s *Inbox) List(
	ctx context.Context,
	ledger domain.Ledger,
	userID domain.UserID,
	limit int,
) ([]*domain.BookingRequest, error) {

	if s.store == nil {
		return []*domain.BookingRequest{}, nil
	}

	if limit <= 0 {
		limit = 20
	}

	filter := domain.BookingFilter{Limit: limit}
	switch ledger {
	case domain.LedgerTenant:
		filter.RecipientID = userID
	default:
		filter.RequesterID = userID
	}

	return s.store.ListBookingRequests(ctx, ledger, filter)
}
