package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	}, "test")

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ip:a")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, err := limiter.Allow(ctx, "ip:a")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, mr.Exists("test:ip:a"))
	ttl, err := limiter.TTL(ctx, "ip:a")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(time.Minute)
	allowed, err = limiter.Allow(ctx, "ip:a")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimiter_Remaining(t *testing.T) {
	ctx := context.Background()
	_, client := setupRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "")

	remaining, err := limiter.Remaining(ctx, "ip:a")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "ip:a")
		require.NoError(t, err)
	}
	remaining, err = limiter.Remaining(ctx, "ip:a")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	require.NoError(t, limiter.Reset(ctx, "ip:a"))
	remaining, err = limiter.Remaining(ctx, "ip:a")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	limiter := NewDistributedRateLimiter(client, nil, "test")
	require.NoError(t, limiter.HealthCheck(ctx))

	mr.Close()
	_, err := limiter.Allow(ctx, "ip:a")
	assert.Error(t, err)
	assert.Error(t, limiter.HealthCheck(ctx))

	rec := httptest.NewRecorder()
	handler := NewRateLimitMiddleware(limiter, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
