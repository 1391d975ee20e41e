package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redisc "github.com/mx-space/tldr/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "tldr:"

// RedisStore keeps the queue in Redis so it survives restarts:
//
//	{prefix}queue:{high,normal,low}  list of document ids, FIFO
//	{prefix}queue:entries            hash document id -> entry JSON (dedup)
//	{prefix}queue:timers             zset document id, score = due unix ms
//	{prefix}queue:timer_payloads     hash document id -> timer JSON
//
// Mutations assume a single writer.
type RedisStore struct {
	rc     *redisc.Client
	prefix string
}

func NewRedisStore(rc *redisc.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{rc: rc, prefix: prefix}
}

func (s *RedisStore) tierKey(p Priority) string { return s.prefix + "queue:" + string(p) }
func (s *RedisStore) entriesKey() string       { return s.prefix + "queue:entries" }
func (s *RedisStore) timersKey() string        { return s.prefix + "queue:timers" }
func (s *RedisStore) payloadsKey() string      { return s.prefix + "queue:timer_payloads" }

func (s *RedisStore) Insert(ctx context.Context, e Entry) (bool, error) {
	e.Priority = ParsePriority(string(e.Priority))
	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	added, err := s.rc.Raw().HSetNX(ctx, s.entriesKey(), e.DocumentID, data).Result()
	if err != nil {
		return false, fmt.Errorf("insert queue entry: %w", err)
	}
	if !added {
		return false, nil
	}
	if err := s.rc.Raw().RPush(ctx, s.tierKey(e.Priority), e.DocumentID).Err(); err != nil {
		s.rc.Raw().HDel(ctx, s.entriesKey(), e.DocumentID)
		return false, fmt.Errorf("insert queue entry: %w", err)
	}
	return true, nil
}

func (s *RedisStore) PopFront(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rdb := s.rc.Raw()
	out := make([]Entry, 0, n)
	for _, p := range Priorities {
		if len(out) >= n {
			break
		}
		ids, err := rdb.LPopCount(ctx, s.tierKey(p), n-len(out)).Result()
		if redisc.IsNil(err) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("pop queue tier %s: %w", p, err)
		}
		entries, err := s.loadEntries(ctx, ids)
		if err != nil {
			return out, err
		}
		if err := rdb.HDel(ctx, s.entriesKey(), ids...).Err(); err != nil {
			return out, fmt.Errorf("pop queue tier %s: %w", p, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (s *RedisStore) loadEntries(ctx context.Context, ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.rc.Raw().HMGet(ctx, s.entriesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load queue entries: %w", err)
	}
	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) Take(ctx context.Context, documentID string) (*Entry, error) {
	rdb := s.rc.Raw()
	raw, err := rdb.HGet(ctx, s.entriesKey(), documentID).Result()
	if redisc.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take queue entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode queue entry: %w", err)
	}

	pipe := rdb.TxPipeline()
	pipe.LRem(ctx, s.tierKey(ParsePriority(string(e.Priority))), 0, documentID)
	pipe.HDel(ctx, s.entriesKey(), documentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("take queue entry: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for _, p := range Priorities {
		ids, err := s.rc.Raw().LRange(ctx, s.tierKey(p), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("list queue tier %s: %w", p, err)
		}
		entries, err := s.loadEntries(ctx, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (s *RedisStore) Remove(ctx context.Context, documentID string) (bool, error) {
	e, err := s.Take(ctx, documentID)
	if err != nil {
		return false, err
	}
	pipe := s.rc.Raw().TxPipeline()
	zrem := pipe.ZRem(ctx, s.timersKey(), documentID)
	pipe.HDel(ctx, s.payloadsKey(), documentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("remove queue timer: %w", err)
	}
	return e != nil || zrem.Val() > 0, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	keys := []string{s.entriesKey(), s.timersKey(), s.payloadsKey()}
	for _, p := range Priorities {
		keys = append(keys, s.tierKey(p))
	}
	return s.rc.Raw().Del(ctx, keys...).Err()
}

func (s *RedisStore) Schedule(ctx context.Context, t Timer) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	pipe := s.rc.Raw().TxPipeline()
	pipe.ZAdd(ctx, s.timersKey(), redis.Z{
		Score:  float64(t.DueAt.UnixMilli()),
		Member: t.DocumentID,
	})
	pipe.HSet(ctx, s.payloadsKey(), t.DocumentID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule timer: %w", err)
	}
	return nil
}

func (s *RedisStore) PopDue(ctx context.Context, now time.Time) ([]Timer, error) {
	rdb := s.rc.Raw()
	ids, err := rdb.ZRangeByScore(ctx, s.timersKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan due timers: %w", err)
	}

	var out []Timer
	for _, id := range ids {
		// ZREM claims the timer; a zero result means another caller got it.
		n, err := rdb.ZRem(ctx, s.timersKey(), id).Result()
		if err != nil {
			return out, fmt.Errorf("claim timer: %w", err)
		}
		if n == 0 {
			continue
		}
		raw, err := rdb.HGet(ctx, s.payloadsKey(), id).Result()
		if err != nil && !redisc.IsNil(err) {
			return out, fmt.Errorf("load timer: %w", err)
		}
		rdb.HDel(ctx, s.payloadsKey(), id)

		var t Timer
		if raw == "" || json.Unmarshal([]byte(raw), &t) != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) TimerStats(ctx context.Context) (int, *time.Time, error) {
	rdb := s.rc.Raw()
	count, err := rdb.ZCard(ctx, s.timersKey()).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("count timers: %w", err)
	}
	if count == 0 {
		return 0, nil, nil
	}
	first, err := rdb.ZRangeWithScores(ctx, s.timersKey(), 0, 0).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("next timer: %w", err)
	}
	if len(first) == 0 {
		return int(count), nil, nil
	}
	next := time.UnixMilli(int64(first[0].Score))
	return int(count), &next, nil
}
