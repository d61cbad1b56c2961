package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

// BroadcastTopic receives notifications without a recipient.
const BroadcastTopic = "all_users"

// FCMNotifier pushes notifications through Firebase Cloud Messaging. Each
// user's devices subscribe to the topic "user_<id>".
type FCMNotifier struct {
	client *messaging.Client
}

func NewFCMNotifier(client *messaging.Client) *FCMNotifier {
	return &FCMNotifier{client: client}
}

func UserTopic(id domain.UserID) string {
	return "user_" + string(id)
}

func (n *FCMNotifier) Notify(ctx context.Context, nt domain.Notification) error {
	topic := BroadcastTopic
	if nt.Recipient != "" {
		topic = UserTopic(nt.Recipient)
	}

	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: nt.Title,
			Body:  nt.Body,
		},
		Data: map[string]string{
			"conversationId": string(nt.ConversationID),
		},
		Topic: topic,
	}

	id, err := n.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}

	observability.LoggerFromContext(ctx).Debug("push notification sent", "fcm_message_id", id, "recipient", nt.Recipient)
	return nil
}
