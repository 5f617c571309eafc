package store

import (
	"context"
	"strconv"
	"time"

	"github.com/BatmanBruc/convert-bot/types"
)

// RedisSessionStore keeps sessions as JSON values. Every save refreshes the TTL, so idle
// sessions expire on their own.
type RedisSessionStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisSessionStore(redisClient *RedisClient, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisSessionStore) key(userID int64) string {
	return s.client.generateKey("session", strconv.FormatInt(userID, 10))
}

func (s *RedisSessionStore) Get(ctx context.Context, userID int64) (*types.Session, error) {
	var session types.Session
	if err := s.client.Get(ctx, s.key(userID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *types.Session) error {
	return s.client.Set(ctx, s.key(session.UserID), session, s.ttl)
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID))
}
