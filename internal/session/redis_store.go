package session

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"salesportal/internal/domain"
)

const redisKeyPrefix = "upload-session:"

// RedisStore keeps upload sessions in Redis so a restart does not wipe
// half-finished uploads. Values are JSON, expired by Redis itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, username string) (*domain.UploadSession, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+username).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var sess domain.UploadSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, false, err
	}
	return &sess, true, nil
}

func (s *RedisStore) Put(ctx context.Context, username string, sess *domain.UploadSession) error {
	if sess == nil {
		return nil
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+username, payload, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, username string) error {
	return s.client.Del(ctx, redisKeyPrefix+username).Err()
}
