package chatroom

import (
	"github.com/PabloGalante/rentchat/internal/domain"
)

// User-facing error strings; remote errors never reach the view verbatim.
const (
	msgLoadFailed    = "Failed to load messages."
	msgSendFailed    = "Failed to send message."
	msgBookingFailed = "Failed to send booking request."
)

// DisplayMessage is a message decorated with its author's current profile.
type DisplayMessage struct {
	ID        domain.MessageID
	Text      string
	CreatedAt domain.Timestamp
	Author    domain.ParticipantProfile
	Mine      bool
}

// BookingPanel is the state of the booking request form.
type BookingPanel struct {
	Open  bool
	Draft string
	Error string
}

// View is an immutable snapshot of a chat room. Version grows with every change.
type View struct {
	ConversationID domain.ConversationID
	Version        uint64

	Loading bool
	// Failed marks the terminal subscription error state; Error holds its message.
	Failed bool
	Error  string

	Messages []DisplayMessage
	Partner  domain.ParticipantProfile

	Draft     string
	SendError string
	Booking   BookingPanel

	Closed bool
}

// Latest returns the last message of the view.
func (v View) Latest() (DisplayMessage, bool) {
	if len(v.Messages) == 0 {
		return DisplayMessage{}, false
	}
	return v.Messages[len(v.Messages)-1], true
}
