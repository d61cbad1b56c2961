package cache_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/PabloGalante/rentchat/internal/adapters/cache"
	"github.com/PabloGalante/rentchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/rentchat/internal/domain"
)

type countingProfiles struct {
	next  domain.ProfileStore
	calls atomic.Int32
}

func (c *countingProfiles) GetProfile(ctx context.Context, id domain.UserID) (*domain.ParticipantProfile, error) {
	c.calls.Add(1)
	return c.next.GetProfile(ctx, id)
}

// newCache runs against an in-process Redis, or against the disposable
// server named by RENTCHAT_TEST_REDIS_ADDR (database 15 is flushed).
func newCache(t *testing.T, profiles domain.ProfileStore) (*cache.ProfileCache, context.Context, *miniredis.Miniredis) {
	t.Helper()

	var (
		mr   *miniredis.Miniredis
		addr = os.Getenv("RENTCHAT_TEST_REDIS_ADDR")
		db   = 15
	)
	if addr == "" {
		mr = miniredis.RunT(t)
		addr, db = mr.Addr(), 0
	}

	ctx := context.Background()
	cli, err := cache.NewRedis(ctx, addr, "", db)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() {
		_ = cli.FlushDB(context.Background()).Err()
		_ = cli.Close()
	})
	if err := cli.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("FlushDB: %v", err)
	}

	return cache.NewProfileCache(cli, profiles, time.Minute), ctx, mr
}

func TestProfileCacheServesRepeatReadsFromRedis(t *testing.T) {
	store := memory.NewProfileStore()
	_ = store.PutProfile(&domain.ParticipantProfile{ID: "alice", Name: "Alice"})
	backing := &countingProfiles{next: store}
	c, ctx, _ := newCache(t, backing)

	for i := 0; i < 3; i++ {
		p, err := c.GetProfile(ctx, "alice")
		if err != nil {
			t.Fatalf("GetProfile: %v", err)
		}
		if p.Name != "Alice" {
			t.Fatalf("unexpected profile %+v", p)
		}
	}
	if n := backing.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backing read, got %d", n)
	}

	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := c.GetProfile(ctx, "alice"); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if n := backing.calls.Load(); n != 2 {
		t.Fatalf("expected a backing read after invalidation, got %d", n)
	}
}

func TestProfileCacheDoesNotCacheMissingProfiles(t *testing.T) {
	store := memory.NewProfileStore()
	backing := &countingProfiles{next: store}
	c, ctx, _ := newCache(t, backing)

	if _, err := c.GetProfile(ctx, "carol"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = store.PutProfile(&domain.ParticipantProfile{ID: "carol", Name: "Carol"})
	p, err := c.GetProfile(ctx, "carol")
	if err != nil || p.Name != "Carol" {
		t.Fatalf("expected the new profile, got %+v, %v", p, err)
	}
}

func TestProfileCacheExpiresEntries(t *testing.T) {
	store := memory.NewProfileStore()
	_ = store.PutProfile(&domain.ParticipantProfile{ID: "bob", Name: "Bob"})
	backing := &countingProfiles{next: store}
	c, ctx, mr := newCache(t, backing)
	if mr == nil {
		t.Skip("expiry needs the in-process server clock")
	}

	if _, err := c.GetProfile(ctx, "bob"); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !mr.Exists("profile:bob") {
		t.Fatalf("expected bob to be cached")
	}

	mr.FastForward(2 * time.Minute)
	if mr.Exists("profile:bob") {
		t.Fatalf("expected the cached profile to expire")
	}
	if _, err := c.GetProfile(ctx, "bob"); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if n := backing.calls.Load(); n != 2 {
		t.Fatalf("expected a backing read after expiry, got %d", n)
	}
}

func TestProfileCacheReplacesUnreadableEntries(t *testing.T) {
	store := memory.NewProfileStore()
	_ = store.PutProfile(&domain.ParticipantProfile{ID: "bob", Name: "Bob"})
	backing := &countingProfiles{next: store}
	c, ctx, mr := newCache(t, backing)
	if mr == nil {
		t.Skip("seeding raw values needs the in-process server")
	}

	if err := mr.Set("profile:bob", "{not json"); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	p, err := c.GetProfile(ctx, "bob")
	if err != nil || p.Name != "Bob" {
		t.Fatalf("expected the stored profile, got %+v, %v", p, err)
	}
	if n := backing.calls.Load(); n != 1 {
		t.Fatalf("expected a backing read, got %d", n)
	}
	if _, err := c.GetProfile(ctx, "bob"); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if n := backing.calls.Load(); n != 1 {
		t.Fatalf("expected the rewritten entry to be served from cache, got %d reads", n)
	}
}
