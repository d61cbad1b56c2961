package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// BookingLedger is a simple in-memory implementation of domain.BookingLedger.
// It is NOT persistent and is only suitable for development / local mode.
type BookingLedger struct {
	mu      sync.RWMutex
	entries map[domain.Ledger][]*domain.BookingRequest
}

// NewBookingLedger creates a new in-memory BookingLedger.
func NewBookingLedger() *BookingLedger {
	return &BookingLedger{
		entries: make(map[domain.Ledger][]*domain.BookingRequest),
	}
}

// AppendBookingRequest saves a request in one ledger.
func (s *BookingLedger) AppendBookingRequest(_ context.Context, ledger domain.Ledger, req *domain.BookingRequest) error {
	if req == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *req
	s.entries[ledger] = append(s.entries[ledger], &cp)
	return nil
}

// ListBookingRequests returns the last `limit` matching requests, oldest first.
// If limit <= 0, returns all.
func (s *BookingLedger) ListBookingRequests(
	_ context.Context,
	ledger domain.Ledger,
	filter domain.BookingFilter,
) ([]*domain.BookingRequest, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.BookingRequest
	for _, req := range s.entries[ledger] {
		if filter.Matches(req) {
			matched = append(matched, req)
		}
	}
	if len(matched) == 0 {
		return []*domain.BookingRequest{}, nil
	}

	// If limit is not valid, use all
	limit := filter.Limit
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}

	// Take the last `limit` requests
	selected := matched[len(matched)-limit:]

	out := make([]*domain.BookingRequest, 0, len(selected))
	for _, req := range selected {
		cp := *req
		out = append(out, &cp)
	}

	return out, nil
}
