package listingwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

const (
	notificationTitle = "New Listing Added"
	latestLimit       = 1
)

// Watcher announces newly posted rental listings.
type Watcher struct {
	feed     domain.ListingFeed
	notifier domain.Notifier
	// Recipient receives the notifications. Empty means a broadcast, which
	// the notifier decides how to deliver.
	Recipient domain.UserID
}

func New(feed domain.ListingFeed, notifier domain.Notifier) *Watcher {
	return &Watcher{feed: feed, notifier: notifier}
}

// Run watches the newest listing until ctx ends or the stream fails. The
// first batch only primes the watcher: listings that already exist are not
// announced.
func (w *Watcher) Run(ctx context.Context) error {
	log := observability.LoggerFromContext(ctx).With("component", "listing_watcher")

	stream, err := w.feed.WatchLatestListings(ctx, latestLimit)
	if err != nil {
		return fmt.Errorf("watch listings: %w", err)
	}
	defer stream.Stop()

	primed := false
	for {
		b, err := stream.Next()
		if err != nil {
			if errors.Is(err, domain.ErrStreamClosed) {
				return nil
			}
			log.Error("listing subscription failed", "error", err)
			return err
		}

		// The first snapshot reports the existing newest listing as added.
		// It is history, not news, so a restart never re-announces it.
		if !primed {
			primed = true
			continue
		}

		for _, ch := range b.Changes {
			if ch.Kind != domain.ChangeAdded {
				continue
			}
			w.announce(ctx, log, ch.Item)
		}
	}
}

func (w *Watcher) announce(ctx context.Context, log *slog.Logger, l *domain.Listing) {
	err := w.notifier.Notify(ctx, domain.Notification{
		Recipient: w.Recipient,
		Title:     notificationTitle,
		Body:      "A new listing has been added: " + l.Title,
	})
	if err != nil {
		log.Warn("listing notification failed", "listing_id", l.ID, "error", err)
		return
	}
	log.Info("new listing announced", "listing_id", l.ID)
}
