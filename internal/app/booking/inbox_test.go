package booking_test

import (
	"context"
	"testing"

	"github.com/PabloGalante/rentchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/rentchat/internal/app/booking"
	"github.com/PabloGalante/rentchat/internal/domain"
)

func TestInboxListsByLedgerAudience(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewBookingLedger()
	ch := booking.NewChannel(ledger)

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := ch.Submit(ctx, booking.SubmitInput{Conversation: conv, RequesterID: "tenant", Message: msg}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	inbox := booking.NewInbox(ledger)

	sent, err := inbox.List(ctx, domain.LedgerGlobal, "tenant", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sent) != 2 || sent[0].Message != "second" || sent[1].Message != "third" {
		t.Fatalf("expected the last two sent requests, got %+v", sent)
	}

	received, err := inbox.List(ctx, domain.LedgerTenant, "owner", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(received) != 3 {
		t.Fatalf("expected 3 received requests, got %d", len(received))
	}

	none, err := inbox.List(ctx, domain.LedgerTenant, "tenant", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("requester has no incoming requests, got %d", len(none))
	}
}
