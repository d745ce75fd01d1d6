package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "plan:occurrence:"

// OccurrenceGuard records planned occurrence identity keys in Redis so
// overlapping or closely spaced plan runs cannot insert the same
// occurrence twice. The planner's in-memory key set already dedupes within
// one run; this guard is the storage-level uniqueness backstop across runs.
type OccurrenceGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOccurrenceGuard creates a guard using the provided Redis client and TTL.
func NewOccurrenceGuard(client *redis.Client, ttl time.Duration) *OccurrenceGuard {
	return &OccurrenceGuard{client: client, ttl: ttl}
}

// Acquire records the identity key if it is not already held. It returns
// true when the key was newly recorded.
func (g *OccurrenceGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, guardKeyPrefix+key, 1, g.ttl).Result()
}

// Release deletes a previously acquired key. It is used when persisting
// the occurrence fails so a later run may plan it again.
func (g *OccurrenceGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, guardKeyPrefix+key).Err()
}
