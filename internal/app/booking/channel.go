package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

// Channel writes booking requests for a conversation's participants.
// Every request goes to two ledgers as two unrelated records.
type Channel struct {
	ledger domain.BookingLedger
	now    func() time.Time
	newID  func() string
}

func NewChannel(ledger domain.BookingLedger) *Channel {
	return &Channel{
		ledger: ledger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

type SubmitInput struct {
	Conversation domain.Conversation
	RequesterID  domain.UserID
	Message      string // may be empty
}

// SubmitOutput holds the record written to each ledger; nil when that write failed.
type SubmitOutput struct {
	Global *domain.BookingRequest
	Tenant *domain.BookingRequest
}

// DualWriteError reports which ledger writes failed. When only one failed the
// other ledger already holds its record; nothing is rolled back.
type DualWriteError struct {
	GlobalErr error
	TenantErr error
}

func (e *DualWriteError) Error() string {
	var parts []string
	if e.GlobalErr != nil {
		parts = append(parts, fmt.Sprintf("%s: %v", domain.LedgerGlobal, e.GlobalErr))
	}
	if e.TenantErr != nil {
		parts = append(parts, fmt.Sprintf("%s: %v", domain.LedgerTenant, e.TenantErr))
	}
	return "booking request write failed (" + strings.Join(parts, "; ") + ")"
}

func (e *DualWriteError) Unwrap() []error {
	var errs []error
	if e.GlobalErr != nil {
		errs = append(errs, e.GlobalErr)
	}
	if e.TenantErr != nil {
		errs = append(errs, e.TenantErr)
	}
	return errs
}

// Partial reports whether exactly one ledger got its record.
func (e *DualWriteError) Partial() bool {
	return (e.GlobalErr == nil) != (e.TenantErr == nil)
}

// Submit creates a pending request addressed to the requester's partner and
// attempts both ledger writes regardless of each other's outcome.
func (c *Channel) Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error) {
	if in.RequesterID == "" {
		return nil, domain.ErrUnauthenticated
	}

	recipient := in.Conversation.PartnerOf(in.RequesterID)
	log := observability.LoggerFromContext(ctx).With(
		"conversation_id", in.Conversation.ID,
		"requester_id", in.RequesterID,
		"recipient_id", recipient,
	)

	now := c.now()
	build := func() *domain.BookingRequest {
		return &domain.BookingRequest{
			ID:          domain.BookingRequestID(c.newID()),
			RequesterID: in.RequesterID,
			RecipientID: recipient,
			Message:     in.Message,
			Status:      domain.BookingStatusPending,
			CreatedAt:   now,
		}
	}

	out := &SubmitOutput{}
	var dwErr DualWriteError

	global := build()
	if err := c.ledger.AppendBookingRequest(ctx, domain.LedgerGlobal, global); err != nil {
		log.Error("failed to write booking request", "ledger", domain.LedgerGlobal, "error", err)
		dwErr.GlobalErr = err
	} else {
		out.Global = global
	}

	tenant := build()
	if err := c.ledger.AppendBookingRequest(ctx, domain.LedgerTenant, tenant); err != nil {
		log.Error("failed to write booking request", "ledger", domain.LedgerTenant, "error", err)
		dwErr.TenantErr = err
	} else {
		out.Tenant = tenant
	}

	if dwErr.GlobalErr != nil || dwErr.TenantErr != nil {
		if dwErr.Partial() {
			log.Warn("booking ledgers diverged")
		}
		return out, &dwErr
	}

	log.Info("booking request submitted", "global_id", global.ID, "tenant_id", tenant.ID)
	return out, nil
}

// IsDualWriteError reports whether err came from a failed ledger write.
func IsDualWriteError(err error) bool {
	var dw *DualWriteError
	return errors.As(err, &dw)
}
