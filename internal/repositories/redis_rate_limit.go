package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soundbites/quizapi/internal/models"
)

// reserveScript prunes the window and, unless the fingerprint is locked,
// counts the attempt and applies the threshold, all in one step.
// KEYS: attempts zset, lock key. ARGV: now ms, window ms, threshold, lockout ms, member.
// Returns {admitted 0/1, lock_until_ms or 0, attempt scores...}.
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local threshold = tonumber(ARGV[3])
local lockout = tonumber(ARGV[4])

local lock = redis.call('GET', KEYS[2])
if lock and tonumber(lock) <= now then
	redis.call('DEL', KEYS[1], KEYS[2])
	lock = false
end

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if not lock and count >= threshold then
	lock = now + lockout
	redis.call('SET', KEYS[2], lock)
end

local admitted = 0
if not lock then
	admitted = 1
	redis.call('ZADD', KEYS[1], now, ARGV[5])
	count = count + 1
	if count >= threshold then
		lock = now + lockout
		redis.call('SET', KEYS[2], lock)
	end
end

local ttl = window + lockout
redis.call('PEXPIRE', KEYS[1], ttl)
if lock then
	redis.call('PEXPIRE', KEYS[2], ttl)
end

local out = {admitted, tonumber(lock or 0)}
local scores = redis.call('ZRANGE', KEYS[1], 0, -1, 'WITHSCORES')
for i = 2, #scores, 2 do
	table.insert(out, scores[i])
end
return out
`)

// getScript prunes the window and clears an expired lock.
// KEYS: attempts zset, lock key. ARGV: now ms, window ms.
var getScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local lock = redis.call('GET', KEYS[2])
if lock and tonumber(lock) <= now then
	redis.call('DEL', KEYS[1], KEYS[2])
	return {0}
end

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local out = {tonumber(lock or 0)}
local scores = redis.call('ZRANGE', KEYS[1], 0, -1, 'WITHSCORES')
for i = 2, #scores, 2 do
	table.insert(out, scores[i])
end
return out
`)

// RedisRateLimitStore shares rate-limit state between instances through
// Redis. Keys expire on their own, so DeleteStale has nothing to do.
type RedisRateLimitStore struct {
	client redis.UniversalClient
}

func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// NewRedisClient parses a redis:// URL and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// rateLimitKeys share a hash tag so both land in the same cluster slot
func rateLimitKeys(fingerprint string) []string {
	return []string{
		"ratelimit:{" + fingerprint + "}:attempts",
		"ratelimit:{" + fingerprint + "}:lock",
	}
}

func (s *RedisRateLimitStore) Reserve(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, bool, error) {
	res, err := reserveScript.Run(ctx, s.client, rateLimitKeys(fingerprint),
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Threshold,
		policy.Lockout.Milliseconds(),
		uuid.New().String(),
	).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve attempt in redis: %w", err)
	}
	if len(res) < 2 {
		return nil, false, fmt.Errorf("unexpected reply from redis reserve script: %d values", len(res))
	}

	admitted, err := replyToInt64(res[0])
	if err != nil {
		return nil, false, fmt.Errorf("unexpected admission flag from redis: %w", err)
	}
	rec, err := decodeRecord(fingerprint, res[1:])
	if err != nil {
		return nil, false, err
	}
	rec.UpdatedAt = now
	return rec, admitted == 1, nil
}

func (s *RedisRateLimitStore) Get(ctx context.Context, fingerprint string, now time.Time, policy models.RateLimitPolicy) (*models.RateLimitRecord, error) {
	res, err := getScript.Run(ctx, s.client, rateLimitKeys(fingerprint),
		now.UnixMilli(),
		policy.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit from redis: %w", err)
	}
	return decodeRecord(fingerprint, res)
}

func (s *RedisRateLimitStore) Clear(ctx context.Context, fingerprint string) error {
	if err := s.client.Del(ctx, rateLimitKeys(fingerprint)...).Err(); err != nil {
		return fmt.Errorf("failed to clear rate limit in redis: %w", err)
	}
	return nil
}

func (s *RedisRateLimitStore) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func decodeRecord(fingerprint string, res []interface{}) (*models.RateLimitRecord, error) {
	rec := &models.RateLimitRecord{Fingerprint: fingerprint}
	if len(res) == 0 {
		return rec, nil
	}

	lockMs, err := replyToInt64(res[0])
	if err != nil {
		return nil, fmt.Errorf("unexpected lock value from redis: %w", err)
	}
	if lockMs > 0 {
		lockUntil := time.UnixMilli(lockMs).UTC()
		rec.LockUntil = &lockUntil
	}

	rec.Attempts = make([]time.Time, 0, len(res)-1)
	for _, v := range res[1:] {
		ms, err := replyToInt64(v)
		if err != nil {
			return nil, fmt.Errorf("unexpected attempt score from redis: %w", err)
		}
		rec.Attempts = append(rec.Attempts, time.UnixMilli(ms).UTC())
	}
	return rec, nil
}

func replyToInt64(v interface{}) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("type %T", v)
	}
}
