package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/rentchat/internal/domain"
	"github.com/PabloGalante/rentchat/internal/observability"
)

const defaultProfileTTL = 5 * time.Minute

// ProfileCache is a read-through Redis cache in front of a ProfileStore.
// Missing profiles are not cached so that a new user shows up right away.
type ProfileCache struct {
	cli  redis.UniversalClient
	next domain.ProfileStore
	ttl  time.Duration
}

// NewRedis dials addr and checks the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func NewProfileCache(cli redis.UniversalClient, next domain.ProfileStore, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &ProfileCache{cli: cli, next: next, ttl: ttl}
}

func profileKey(id domain.UserID) string {
	return "profile:" + string(id)
}

// GetProfile serves from Redis when possible. Cache failures only cost a
// round trip to the backing store.
func (c *ProfileCache) GetProfile(ctx context.Context, id domain.UserID) (*domain.ParticipantProfile, error) {
	log := observability.LoggerFromContext(ctx)
	key := profileKey(id)

	raw, err := c.cli.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.ParticipantProfile
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		log.Warn("dropping unreadable cached profile", "user_id", id)
		_ = c.cli.Del(ctx, key).Err()
	case !errors.Is(err, redis.Nil):
		log.Warn("profile cache read failed", "user_id", id, "error", err)
	}

	p, err := c.next.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(p); err == nil {
		if err := c.cli.Set(ctx, key, b, c.ttl).Err(); err != nil {
			log.Warn("profile cache write failed", "user_id", id, "error", err)
		}
	}
	return p, nil
}

// Invalidate forgets the cached profile of id.
func (c *ProfileCache) Invalidate(ctx context.Context, id domain.UserID) error {
	return c.cli.Del(ctx, profileKey(id)).Err()
}
