package domain

import "fmt"

// BookingStatus is the lifecycle state of a booking request.
// Only BookingStatusPending is ever written by this module.
type BookingStatus string

const (
	BookingStatusPending BookingStatus = "pending"
)

// Ledger names one of the collections booking requests are written to.
type Ledger string

const (
	// LedgerGlobal holds every request, read by the requester side.
	LedgerGlobal Ledger = "bookingRequests"
	// LedgerTenant holds the counterpart-facing copy.
	LedgerTenant Ledger = "tenantBookingRequests"
)

// ParseLedger accepts the collection name or a short alias.
func ParseLedger(s string) (Ledger, error) {
	switch s {
	case "", "global", string(LedgerGlobal):
		return LedgerGlobal, nil
	case "tenant", string(LedgerTenant):
		return LedgerTenant, nil
	default:
		return "", fmt.Errorf("unknown ledger %q", s)
	}
}

// BookingRequest is an out-of-band request sent alongside a chat.
type BookingRequest struct {
	ID          BookingRequestID `json:"id"`
	RequesterID UserID           `json:"requester_id"`
	RecipientID UserID           `json:"recipient_id"`
	Message     string           `json:"message"`
	Status      BookingStatus    `json:"status"`
	CreatedAt   Timestamp        `json:"created_at"`
}

// BookingFilter selects requests from a ledger.
// RequesterID and RecipientID are ANDed when both are set.
type BookingFilter struct {
	RequesterID UserID
	RecipientID UserID
	Limit       int
}

// Matches reports whether req satisfies the filter (limit excluded).
func (f BookingFilter) Matches(req *BookingRequest) bool {
	if f.RequesterID != "" && req.RequesterID != f.RequesterID {
		return false
	}
	if f.RecipientID != "" && req.RecipientID != f.RecipientID {
		return false
	}
	return true
}
