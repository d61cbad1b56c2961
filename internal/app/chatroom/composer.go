package chatroom

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// SetDraft replaces the text of the message input.
func (r *Room) SetDraft(text string) {
	r.update(func(v *View) {
		v.Draft = text
	})
}

// Send appends the draft to the message log and then updates the
// conversation summary. A whitespace-only draft is a no-op returning
// ErrEmptyMessage. On any failure the draft is kept for a manual retry;
// an appended message whose summary update failed stays appended.
func (r *Room) Send(ctx context.Context) (*domain.Message, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.ctx.Err() != nil {
		return nil, domain.ErrViewClosed
	}

	draft := r.View().Draft
	text := strings.TrimSpace(draft)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	user, ok := r.currentUser()
	if !ok || user.ID == "" {
		r.setSendError()
		return nil, domain.ErrUnauthenticated
	}

	log := r.log.With("user_id", user.ID)

	msg := &domain.Message{
		ID:             domain.MessageID(r.deps.NewMessageID()),
		ConversationID: r.conv.ID,
		Text:           text,
		CreatedAt:      r.deps.Now(),
		Author: domain.Author{
			ID:   user.ID,
			Name: r.senderName(user),
		},
	}

	if err := r.deps.Log.AppendMessage(ctx, msg); err != nil {
		log.Error("failed to append message", "error", err)
		r.setSendError()
		return nil, fmt.Errorf("append message: %w", err)
	}

	summary := r.conv
	summary.LastMessage = text
	summary.LastMessageTime = msg.CreatedAt
	if err := r.deps.Chats.UpdateSummary(ctx, &summary); err != nil {
		log.Error("message appended but summary update failed", "message_id", msg.ID, "error", err)
		r.setSendError()
		return msg, fmt.Errorf("%w: %w", domain.ErrSummaryUpdate, err)
	}

	r.update(func(v *View) {
		// keep whatever was typed while the send was in flight
		if v.Draft == draft {
			v.Draft = ""
		}
		v.SendError = ""
	})

	log.Info("message sent", "message_id", msg.ID)
	return msg, nil
}

// senderName prefers the session's display name, then the resolved profile.
func (r *Room) senderName(user domain.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if p := r.dir.Lookup(user.ID); p.Name != "" && p.Name != domain.UnknownUserName {
		return p.Name
	}
	return domain.DefaultSenderName
}

func (r *Room) setSendError() {
	r.update(func(v *View) {
		v.SendError = msgSendFailed
	})
}
