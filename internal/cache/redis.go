package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/klicktape/backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient wraps the redis.Client with centralized connection pooling
type RedisClient struct {
	client *redis.Client
}

// Singleton instance (package-level)
var globalRedis *RedisClient

// NewRedisClient creates and initializes a Redis client with connection pooling
func NewRedisClient(host, port, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	rc := &RedisClient{client: client}
	globalRedis = rc

	logger.Log.Info("✅ Redis client connected successfully",
		zap.String("address", addr),
	)

	return rc, nil
}

// NewRedisClientFromExisting wraps an already constructed redis.Client.
// Used by tests that back the wrapper with miniredis.
func NewRedisClientFromExisting(client *redis.Client) *RedisClient {
	rc := &RedisClient{client: client}
	globalRedis = rc
	return rc
}

// GetRedisClient returns the global Redis client instance
func GetRedisClient() *RedisClient {
	return globalRedis
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Get retrieves a value from Redis
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return rc.client.Get(ctx, key).Result()
}

// SetEx stores a value in Redis with expiration
func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// SetNX stores a value only if the key does not exist
func (rc *RedisClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return rc.client.SetNX(ctx, key, value, ttl).Result()
}

// GetDel retrieves a value and deletes the key in one round trip
func (rc *RedisClient) GetDel(ctx context.Context, key string) (string, error) {
	return rc.client.GetDel(ctx, key).Result()
}

// Del deletes one or more keys from Redis
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// Keys returns all keys matching a pattern
func (rc *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return rc.client.Keys(ctx, pattern).Result()
}

// Exists checks if one or more keys exist in Redis
func (rc *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	return rc.client.Exists(ctx, keys...).Result()
}

// TTL returns the time-to-live for a key
func (rc *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// IsNil reports whether err is the redis key-missing sentinel
func IsNil(err error) bool {
	return err == redis.Nil
}
