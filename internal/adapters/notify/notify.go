package notify

import (
	"context"
	"errors"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

// LogNotifier writes notifications to the structured log. Used in local mode.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n domain.Notification) error {
	observability.LoggerFromContext(ctx).Info("notification",
		"recipient", n.Recipient,
		"conversation_id", n.ConversationID,
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}

// Fanout delivers every notification to all of its notifiers, even when some fail.
type Fanout []domain.Notifier

func (f Fanout) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, nt := range f {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a plain function to domain.Notifier.
type Func func(ctx context.Context, n domain.Notification) error

func (f Func) Notify(ctx context.Context, n domain.Notification) error {
	return f(ctx, n)
}
