package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/identity"
	"github.com/redis/go-redis/v9"
)

// Store caches caller roles so admin checks skip the identity provider
// round trip.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func roleKey(userID string) string {
	return "chatbot:role:" + userID
}

// GetRole returns ok=false on a cache miss.
func (s *Store) GetRole(ctx context.Context, userID string) (identity.Role, bool, error) {
	v, err := s.rdb.Get(ctx, roleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return identity.ParseRole(v), true, nil
}

func (s *Store) SetRole(ctx context.Context, userID string, role identity.Role) error {
	return s.rdb.Set(ctx, roleKey(userID), string(role), s.ttl).Err()
}

func (s *Store) DeleteRole(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, roleKey(userID)).Err()
}
