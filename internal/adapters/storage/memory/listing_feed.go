package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// ListingFeed holds rental listings for the listing watcher.
type ListingFeed struct {
	mu       sync.Mutex
	listings []*domain.Listing
	watchers map[*feed[*domain.Listing]]struct{}
	now      func() time.Time
}

func NewListingFeed() *ListingFeed {
	return &ListingFeed{
		watchers: make(map[*feed[*domain.Listing]]struct{}),
		now:      time.Now,
	}
}

// PutListing adds a listing, newest timestamps first.
func (s *ListingFeed) PutListing(l *domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.listings = append(s.listings, &cp)
	sort.SliceStable(s.listings, func(i, j int) bool {
		return s.listings[i].Timestamp.After(s.listings[j].Timestamp)
	})

	now := s.now()
	for f := range s.watchers {
		f.publish(s.listings, now)
	}
}

func (s *ListingFeed) WatchLatestListings(ctx context.Context, limit int) (domain.Stream[*domain.Listing], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f *feed[*domain.Listing]
	f = newFeed(ctx, limit, listingKey, sameListing, func() {
		s.mu.Lock()
		delete(s.watchers, f)
		s.mu.Unlock()
	})
	s.watchers[f] = struct{}{}

	f.publish(s.listings, s.now())
	return f, nil
}

func listingKey(l *domain.Listing) string { return string(l.ID) }

func sameListing(a, b *domain.Listing) bool { return *a == *b }

// Watchers reports how many live queries are open.
func (s *ListingFeed) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}
