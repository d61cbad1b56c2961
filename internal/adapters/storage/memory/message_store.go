package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// MessageStore keeps message logs and conversation summaries in memory and
// serves live queries over them. Messages with equal creation times keep
// their append order.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.ConversationID][]*domain.Message
	chats    map[domain.ConversationID]*domain.Conversation
	watchers map[domain.ConversationID]map[*feed[*domain.Message]]struct{}
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.ConversationID][]*domain.Message),
		chats:    make(map[domain.ConversationID]*domain.Conversation),
		watchers: make(map[domain.ConversationID]map[*feed[*domain.Message]]struct{}),
		now:      time.Now,
	}
}

func (s *MessageStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	msgs := append(s.messages[msg.ConversationID], &cp)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.messages[msg.ConversationID] = msgs

	s.publishLocked(msg.ConversationID)
	return nil
}

// RemoveMessage deletes a message. Nothing in the chat flow deletes; it
// exists to exercise removals in live queries.
func (s *MessageStore) RemoveMessage(convID domain.ConversationID, id domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[convID]
	for i, m := range msgs {
		if m.ID == id {
			s.messages[convID] = append(msgs[:i:i], msgs[i+1:]...)
			break
		}
	}
	s.publishLocked(convID)
}

func (s *MessageStore) WatchMessages(ctx context.Context, id domain.ConversationID, limit int) (domain.Stream[*domain.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f *feed[*domain.Message]
	f = newFeed(ctx, limit, messageKey, sameMessage, func() {
		s.mu.Lock()
		delete(s.watchers[id], f)
		s.mu.Unlock()
	})

	if s.watchers[id] == nil {
		s.watchers[id] = make(map[*feed[*domain.Message]]struct{})
	}
	s.watchers[id][f] = struct{}{}

	f.publish(s.messages[id], s.now())
	return f, nil
}

// GetMessagesByConversation returns the last `limit` messages; limit <= 0 returns all.
func (s *MessageStore) GetMessagesByConversation(id domain.ConversationID, limit int) []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[id]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Watchers reports how many live queries are open on a conversation.
func (s *MessageStore) Watchers(id domain.ConversationID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[id])
}

func (s *MessageStore) publishLocked(id domain.ConversationID) {
	now := s.now()
	for f := range s.watchers[id] {
		f.publish(s.messages[id], now)
	}
}

func (s *MessageStore) GetConversation(_ context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MessageStore) UpdateSummary(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[conv.ID]
	if !ok {
		c = &domain.Conversation{ID: conv.ID}
		s.chats[conv.ID] = c
	}
	if conv.SenderID != "" {
		c.SenderID = conv.SenderID
	}
	if conv.ReceiverID != "" {
		c.ReceiverID = conv.ReceiverID
	}
	c.LastMessage = conv.LastMessage
	c.LastMessageTime = conv.LastMessageTime
	return nil
}

func messageKey(m *domain.Message) string { return string(m.ID) }

func sameMessage(a, b *domain.Message) bool { return *a == *b }
