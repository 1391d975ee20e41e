package ratelimit

import (
	"context"
	"testing"
	"time"

	redisc "github.com/mx-space/tldr/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func runLimiterContract(t *testing.T, newLimiter func(limit int, window time.Duration, now func() time.Time) Limiter) {
	ctx := context.Background()
	c := &clock{t: time.UnixMilli(1_700_000_000_000)}
	l := newLimiter(3, time.Minute, c.Now)

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "alice:generate")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, i, d.Used)
		assert.Equal(t, 3-i, d.Remaining)
		c.t = c.t.Add(10 * time.Second)
	}

	d, err := l.Allow(ctx, "alice:generate")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 30, d.ResetInSeconds())

	other, err := l.Allow(ctx, "bob:generate")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	// The first event leaves the rolling window after 60s.
	c.t = c.t.Add(31 * time.Second)
	d, err = l.Peek(ctx, "alice:generate")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Used)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, "alice:generate")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Used)
}

func TestMemoryLimiter(t *testing.T) {
	runLimiterContract(t, func(limit int, window time.Duration, now func() time.Time) Limiter {
		return NewMemory(limit, window, now)
	})
}

func TestPeekEmpty(t *testing.T) {
	d, err := NewMemory(3, time.Minute, nil).Peek(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, Decision{Allowed: true, Limit: 3, Remaining: 3}, d)
}

func TestRedisLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	container, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	runLimiterContract(t, func(limit int, window time.Duration, now func() time.Time) Limiter {
		return NewRedis(redisc.Wrap(rdb), "test:ratelimit:", limit, window, now)
	})
}
