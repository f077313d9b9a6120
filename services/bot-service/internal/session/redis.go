package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rohianon/chatcommerce/pkg/cache"
	"github.com/Rohianon/chatcommerce/services/bot-service/internal/types"
)

const (
	SessionPrefix = "chatcommerce:session:"
	LockPrefix    = "chatcommerce:lock:"

	lockRetry = 50 * time.Millisecond
)

// RedisStore keeps sessions as JSON with a native TTL.
type RedisStore struct {
	cache *cache.RedisCache
}

func NewRedisStore(cache *cache.RedisCache) *RedisStore {
	return &RedisStore{cache: cache}
}

func (s *RedisStore) Get(ctx context.Context, phone string) (*types.Session, error) {
	data, err := s.cache.Get(ctx, SessionPrefix+phone)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}

	var sess types.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess types.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.cache.Set(ctx, SessionPrefix+sess.Phone, string(data), ttl)
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.cache.Delete(ctx, SessionPrefix+phone)
}

func (s *RedisStore) Lock(ctx context.Context, phone string, ttl time.Duration) (func(), error) {
	return s.cache.Lock(ctx, LockPrefix+phone, ttl, lockRetry)
}
