package feedcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

const sharedKeyPrefix = "subway/feed/"

type sharedEnvelope struct {
	FetchedAt int64  `json:"fetched_at"`
	Body      []byte `json:"body"`
}

// sharedTier lets several API replicas reuse one upstream fetch per TTL window
type sharedTier struct {
	cache *cache.Cache[string]
}

func newSharedTier(client *redis.Client, ttl time.Duration) *sharedTier {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &sharedTier{
		cache: cache.New[string](redisStore),
	}
}

func (s *sharedTier) get(ctx context.Context, partitionID string) (time.Time, []byte, bool) {
	value, err := s.cache.Get(ctx, sharedKeyPrefix+partitionID)
	if err != nil || value == "" {
		return time.Time{}, nil, false
	}

	var envelope sharedEnvelope
	if err := json.Unmarshal([]byte(value), &envelope); err != nil {
		return time.Time{}, nil, false
	}

	return time.UnixMilli(envelope.FetchedAt), envelope.Body, true
}

func (s *sharedTier) set(ctx context.Context, partitionID string, fetchedAt time.Time, body []byte) error {
	value, err := json.Marshal(sharedEnvelope{FetchedAt: fetchedAt.UnixMilli(), Body: body})
	if err != nil {
		return err
	}

	return s.cache.Set(ctx, sharedKeyPrefix+partitionID, string(value))
}
