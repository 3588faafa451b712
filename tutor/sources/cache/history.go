// Package cache keeps recently read session history pages in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/sources/psql/models"
	"tutor/tutor/utils/logging"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "tutor:history"

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string, limit, offset int) ([]models.ChatMessage, error)
	SetHistory(ctx context.Context, sessionID string, limit, offset int, messages []models.ChatMessage) error
	Invalidate(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
	Enabled() bool
}

// New returns a Redis cache, or a no-op cache when REDIS_ADDR is empty.
func New(ctx context.Context, cfg config.Config) (HistoryCache, error) {
	if cfg.RedisAddr == "" {
		logging.AppLogger.Info("history cache disabled")
		return NopCache{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	c, err := NewRedisCache(ctx, client, cfg.CacheTTL)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	logging.AppLogger.Info("history cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	return c, nil
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisCache, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) GetHistory(ctx context.Context, sessionID string, limit, offset int) ([]models.ChatMessage, error) {
	data, err := r.client.Get(ctx, historyKey(sessionID, limit, offset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get history from cache: %w", err)
	}
	var messages []models.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return messages, nil
}

func (r *RedisCache) SetHistory(ctx context.Context, sessionID string, limit, offset int, messages []models.ChatMessage) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return r.client.Set(ctx, historyKey(sessionID, limit, offset), data, withJitter(r.ttl)).Err()
}

// Invalidate drops every cached page of the session.
func (r *RedisCache) Invalidate(ctx context.Context, sessionID string) error {
	var cursor uint64
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, sessionID)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan history keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete history keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Enabled() bool { return true }

// NopCache always misses.
type NopCache struct{}

func (NopCache) GetHistory(context.Context, string, int, int) ([]models.ChatMessage, error) {
	return nil, ErrCacheMiss
}
func (NopCache) SetHistory(context.Context, string, int, int, []models.ChatMessage) error { return nil }
func (NopCache) Invalidate(context.Context, string) error                                { return nil }
func (NopCache) Ping(context.Context) error                                              { return nil }
func (NopCache) Close() error                                                            { return nil }
func (NopCache) Enabled() bool                                                           { return false }

func historyKey(sessionID string, limit, offset int) string {
	return fmt.Sprintf("%s:%s:%d:%d", keyPrefix, sessionID, limit, offset)
}

// withJitter spreads expiries by up to a tenth of the TTL.
func withJitter(ttl time.Duration) time.Duration {
	spread := int64(ttl / 10)
	if spread <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(spread))
}
