package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redisc "github.com/mx-space/tldr/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// Redis keeps one sorted set per key, scored by event time in ms.
type Redis struct {
	rc     *redisc.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(rc *redisc.Client, prefix string, limit int, window time.Duration, now func() time.Time) *Redis {
	if prefix == "" {
		prefix = "tldr:ratelimit:"
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{rc: rc, prefix: prefix, limit: limit, window: window, now: now}
}

func (r *Redis) load(ctx context.Context, key string, now time.Time) (int, time.Time, error) {
	rdb := r.rc.Raw()
	k := r.prefix + key
	cutoff := strconv.FormatInt(now.Add(-r.window).UnixMilli(), 10)

	pipe := rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	card := pipe.ZCard(ctx, k)
	first := pipe.ZRangeWithScores(ctx, k, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && !redisc.IsNil(err) {
		return 0, time.Time{}, fmt.Errorf("rate limit window: %w", err)
	}
	var oldest time.Time
	if zs := first.Val(); len(zs) > 0 {
		oldest = time.UnixMilli(int64(zs[0].Score))
	}
	return int(card.Val()), oldest, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	used, oldest, err := r.load(ctx, key, now)
	if err != nil {
		return Decision{}, err
	}
	if used >= r.limit {
		return decide(r.limit, used, oldest, r.window, now, false), nil
	}

	k := r.prefix + key
	pipe := r.rc.Raw().TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.PExpire(ctx, k, r.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit record: %w", err)
	}
	if used == 0 {
		oldest = now
	}
	return decide(r.limit, used+1, oldest, r.window, now, true), nil
}

func (r *Redis) Peek(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	used, oldest, err := r.load(ctx, key, now)
	if err != nil {
		return Decision{}, err
	}
	return decide(r.limit, used, oldest, r.window, now, used < r.limit), nil
}
