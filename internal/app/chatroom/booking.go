package chatroom

import (
	"context"
	"errors"

	"github.com/PabloGalante/rentchat/internal/app/booking"
	"github.com/PabloGalante/rentchat/internal/domain"
)

func (r *Room) OpenBookingPanel() {
	r.update(func(v *View) {
		v.Booking.Open = true
	})
}

func (r *Room) DismissBookingPanel() {
	r.update(func(v *View) {
		v.Booking.Open = false
	})
}

func (r *Room) SetBookingDraft(text string) {
	r.update(func(v *View) {
		v.Booking.Draft = text
	})
}

// SubmitBooking sends the booking draft to the conversation partner. An empty
// draft is allowed. On success the draft is cleared and the panel dismissed;
// on failure both are kept and the panel shows an error.
func (r *Room) SubmitBooking(ctx context.Context) (*booking.SubmitOutput, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.ctx.Err() != nil {
		return nil, domain.ErrViewClosed
	}
	if r.deps.Booking == nil {
		return nil, errors.New("booking requests are not configured")
	}

	draft := r.View().Booking.Draft
	out, err := r.deps.Booking.Submit(ctx, booking.SubmitInput{
		Conversation: r.conv,
		RequesterID:  r.selfID(),
		Message:      draft,
	})
	if err != nil {
		r.update(func(v *View) {
			v.Booking.Error = msgBookingFailed
		})
		return out, err
	}

	r.update(func(v *View) {
		if v.Booking.Draft == draft {
			v.Booking.Draft = ""
		}
		v.Booking.Open = false
		v.Booking.Error = ""
	})
	return out, nil
}
