package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/PabloGalante/rentchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/rentchat/internal/domain"
)

func TestListBookingRequestsFiltersAndLimits(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewBookingLedger()

	reqs := []*domain.BookingRequest{
		{ID: "r1", RequesterID: "t1", RecipientID: "o1", Message: "a"},
		{ID: "r2", RequesterID: "t2", RecipientID: "o1", Message: "b"},
		{ID: "r3", RequesterID: "t1", RecipientID: "o2", Message: "c"},
		{ID: "r4", RequesterID: "t1", RecipientID: "o1", Message: "d"},
	}
	for _, r := range reqs {
		if err := ledger.AppendBookingRequest(ctx, domain.LedgerGlobal, r); err != nil {
			t.Fatalf("AppendBookingRequest: %v", err)
		}
	}

	got, err := ledger.ListBookingRequests(ctx, domain.LedgerGlobal, domain.BookingFilter{RequesterID: "t1", Limit: 2})
	if err != nil {
		t.Fatalf("ListBookingRequests: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r4" {
		t.Fatalf("expected r3, r4, got %+v", got)
	}

	got, _ = ledger.ListBookingRequests(ctx, domain.LedgerGlobal, domain.BookingFilter{RequesterID: "t1", RecipientID: "o1"})
	if len(got) != 2 {
		t.Fatalf("expected 2 requests for t1 -> o1, got %d", len(got))
	}

	got, _ = ledger.ListBookingRequests(ctx, domain.LedgerTenant, domain.BookingFilter{})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty non-nil list for an unused ledger, got %v", got)
	}
}

func TestListingFeedReportsNewestListing(t *testing.T) {
	feed := memory.NewListingFeed()
	base := time.Now()
	feed.PutListing(&domain.Listing{ID: "l1", Title: "Old flat", Timestamp: base})

	stream, err := feed.WatchLatestListings(context.Background(), 1)
	if err != nil {
		t.Fatalf("WatchLatestListings: %v", err)
	}
	defer stream.Stop()

	first, err := stream.Next()
	if err != nil || len(first.Items) != 1 || first.Items[0].ID != "l1" {
		t.Fatalf("unexpected first batch %+v, %v", first, err)
	}

	feed.PutListing(&domain.Listing{ID: "l2", Title: "New flat", Timestamp: base.Add(time.Minute)})
	second, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != "l2" {
		t.Fatalf("expected only the newest listing, got %+v", second.Items)
	}

	var added, removed int
	for _, ch := range second.Changes {
		switch ch.Kind {
		case domain.ChangeAdded:
			added++
		case domain.ChangeRemoved:
			removed++
		}
	}
	if added != 1 || removed != 1 {
		t.Fatalf("expected one added and one removed change, got %+v", second.Changes)
	}
}
