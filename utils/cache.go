package utils

import (
	"context"
	"fmt"
	"time"

	"rivelya/config"

	"github.com/redis/go-redis/v9"
)

var (
	// CacheClient backs the month availability cache.
	CacheClient *redis.Client
	// RealtimeClient carries the per-user pub/sub channels.
	RealtimeClient *redis.Client
)

// NewRedisClient connects to the configured Redis server on db and pings it.
func NewRedisClient(db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis db %d: %w", db, err)
	}
	return client, nil
}

// InitCache opens the cache and realtime clients. Both share REDIS_CACHE_DB; pub/sub
// channels are not scoped to a database.
func InitCache() error {
	cache, err := NewRedisClient(config.AppConfig.RedisCacheDB)
	if err != nil {
		return err
	}
	realtime, err := NewRedisClient(config.AppConfig.RedisCacheDB)
	if err != nil {
		cache.Close()
		return err
	}
	CacheClient, RealtimeClient = cache, realtime
	return nil
}

// CloseCache releases whatever InitCache opened.
func CloseCache() {
	for _, c := range []*redis.Client{CacheClient, RealtimeClient} {
		if c != nil {
			_ = c.Close()
		}
	}
}
