package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// processingMarker is stored while the first request with a key is still
// in flight, so concurrent duplicates can be told apart from replays.
const processingMarker = "processing"

// IdempotencyStore implements usecase.IdempotencyStore using Redis. The
// HTTP layer uses it to replay responses for repeated Idempotency-Key
// headers without re-entering the engine.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "idempotency:",
	}
}

// CheckAndSet atomically checks if key exists, sets if not. Returns the
// recorded response when the key was already claimed.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	existing, err := s.client.Get(ctx, fullKey).Bytes()
	if err == nil {
		return true, existing, nil
	}
	if !errors.Is(err, redis.Nil) {
		return false, nil, err
	}

	if response != nil {
		if err := s.client.Set(ctx, fullKey, response, ttl).Err(); err != nil {
			return false, nil, err
		}
		return false, nil, nil
	}

	// Claim the key with a marker so concurrent duplicates lose the race.
	set, err := s.client.SetNX(ctx, fullKey, processingMarker, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if !set {
		existing, err := s.client.Get(ctx, fullKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return false, nil, err
		}
		return true, existing, nil
	}

	return false, nil, nil
}

// Update replaces the claim marker with the final response.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, response, ttl).Err()
}
