package settings

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"botframe/pkg/logger"
)

// RedisStore keeps each scope in a Redis hash named prefix+scope.
type RedisStore struct {
	log    *logger.Logger
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, log *logger.Logger, cfg *RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	log.Info("Connected to Redis settings store",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", cfg.Prefix))
	return NewRedisStoreWithClient(log, client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(log *logger.Logger, client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "botframe:settings:"
	}
	return &RedisStore{log: log, client: client, prefix: prefix}
}

func (s *RedisStore) hash(scope string) string {
	return s.prefix + scope
}

func (s *RedisStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, s.hash(scope), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, scope, key, value string) error {
	if err := s.client.HSet(ctx, s.hash(scope), key, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, scope, key string) error {
	if err := s.client.HDel(ctx, s.hash(scope), key).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context, scope string) (map[string]string, error) {
	vals, err := s.client.HGetAll(ctx, s.hash(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	return vals, nil
}

func (s *RedisStore) Clear(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, s.hash(scope)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	s.log.Info("Cleared settings scope", zap.String("scope", scope))
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
