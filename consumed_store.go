package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const consumedKeyPrefix = "apc"

var errConsumedRedisUnavailable = errors.New("consumed token redis unavailable")

// consumedTokenStore records used single-use token nonces. An entry lives
// exactly as long as the token it guards could still verify, so the set
// stays small without a sweeper.
type consumedTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newConsumedTokenStore(client redis.UniversalClient) *consumedTokenStore {
	return &consumedTokenStore{
		redis:  client,
		prefix: consumedKeyPrefix,
	}
}

func (s *consumedTokenStore) key(nonce string) string {
	return s.prefix + ":" + nonce
}

// Consume marks the nonce used. Reports true exactly once per nonce; a
// second call sees the SETNX fail and reports false.
func (s *consumedTokenStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	first, err := s.redis.SetNX(ctx, s.key(nonce), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errConsumedRedisUnavailable, err)
	}

	return first, nil
}
