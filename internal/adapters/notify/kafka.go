package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// KafkaNotifier publishes notifications for a downstream delivery service,
// keyed by recipient so that one user's notifications stay ordered.
type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type notificationEvent struct {
	Recipient      string    `json:"recipient"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return NewKafkaNotifierWithWriter(w)
}

func NewKafkaNotifierWithWriter(w MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w, now: time.Now}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n domain.Notification) error {
	now := k.now()
	value, err := json.Marshal(notificationEvent{
		Recipient:      string(n.Recipient),
		ConversationID: string(n.ConversationID),
		Title:          n.Title,
		Body:           n.Body,
		SentAt:         now,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := kafka.Message{Key: []byte(n.Recipient), Value: value, Time: now}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish notification: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.writer.Close() }
