package domain

// Conversation is a two-party chat thread with a denormalized summary.
// SenderID and ReceiverID are just the two participants; they carry no privileges.
type Conversation struct {
	ID              ConversationID `json:"id" validate:"required"`
	SenderID        UserID         `json:"sender_id"`
	ReceiverID      UserID         `json:"receiver_id"`
	LastMessage     string         `json:"last_message,omitempty"`
	LastMessageTime Timestamp      `json:"last_message_time,omitempty"`
}

// Participants returns both participant ids in descriptor order.
func (c Conversation) Participants() []UserID {
	return []UserID{c.SenderID, c.ReceiverID}
}

// PartnerOf returns the participant that is not self.
// A viewer that is neither participant gets the sender as partner.
func (c Conversation) PartnerOf(self UserID) UserID {
	if c.SenderID == self {
		return c.ReceiverID
	}
	return c.SenderID
}

// Author is the reference embedded in every stored message.
type Author struct {
	ID   UserID
	Name string
}

// Message is a raw record of a conversation's message log.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Text           string
	CreatedAt      Timestamp
	Author         Author
}

// ParticipantProfile holds the display metadata of a user.
// PhotoURL is nil when the user has no avatar.
type ParticipantProfile struct {
	ID       UserID  `json:"id"`
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

// UnknownProfile is the sentinel profile for id.
func UnknownProfile(id UserID) ParticipantProfile {
	return ParticipantProfile{ID: id, Name: UnknownUserName}
}

// User is the signed-in user as seen by the session provider.
type User struct {
	ID          UserID
	DisplayName string
}

// Notification is a one-shot local notification.
type Notification struct {
	Recipient      UserID
	ConversationID ConversationID
	Title          string
	Body           string
}

// Listing is the part of a rental listing the listing watcher needs.
type Listing struct {
	ID        ListingID
	Title     string
	PostedBy  UserID
	Timestamp Timestamp
}
