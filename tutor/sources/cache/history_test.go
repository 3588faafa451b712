package cache

import (
	"context"
	"testing"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/sources/psql/models"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutAddr(t *testing.T) {
	c, err := New(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	_, err = c.GetHistory(context.Background(), "s1", 50, 0)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.SetHistory(context.Background(), "s1", 50, 0, []models.ChatMessage{{Content: "x"}}))
	assert.NoError(t, c.Invalidate(context.Background(), "s1"))
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, config.Config{RedisAddr: "127.0.0.1:1", CacheTTL: time.Minute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestNewRedisCache_PingError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer client.Close()

	_, err := NewRedisCache(context.Background(), client, time.Minute)
	assert.Error(t, err)
}

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "tutor:history:abc:50:10", historyKey("abc", 50, 10))
}

func TestWithJitter(t *testing.T) {
	ttl := 5 * time.Minute
	for i := 0; i < 100; i++ {
		got := withJitter(ttl)
		assert.GreaterOrEqual(t, got, ttl)
		assert.Less(t, got, ttl+ttl/10)
	}
	assert.Equal(t, time.Duration(5), withJitter(5))
}
