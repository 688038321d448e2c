package assignment

import (
	"context"
	"errors"

	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes assignment keys
const DefaultRedisPrefix = "codejudge:assignment:"

// Getter is the subset of the redis client used by RedisStore
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

var _ Store = &RedisStore{}

// RedisStore reads assignment documents (YAML or JSON) stored as strings
type RedisStore struct {
	client Getter
	prefix string
}

// NewRedisStore creates a store with keys prefix + assignment id
func NewRedisStore(client Getter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// FetchTestCases implements Store
func (s *RedisStore) FetchTestCases(ctx context.Context, id string) ([]evaluation.TestCase, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	b, err := s.client.Get(ctx, s.prefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, notFound(id)
	case err != nil:
		return nil, apperr.ExternalService(err, "Test case store unavailable")
	}
	return decode(id, b)
}
