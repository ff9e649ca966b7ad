package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"briefing_agent/internal/model"
)

// Counter keys expire well after the longest (monthly) period has rolled over.
const quotaKeyTTL = 62 * 24 * time.Hour

// consumeScript checks every counter against its cap and increments all of
// them only if every check passes. Runs atomically server-side, so concurrent
// consumers in separate processes cannot race past a cap.
//
// KEYS: counter keys; ARGV: amount1, cap1, amount2, cap2, ..., ttlSeconds.
var consumeScript = redis.NewScript(`
for i = 1, #KEYS do
  local used = tonumber(redis.call('GET', KEYS[i]) or '0')
  local amount = tonumber(ARGV[i*2-1])
  local cap = tonumber(ARGV[i*2])
  if used + amount > cap then
    return 0
  end
end
for i = 1, #KEYS do
  redis.call('INCRBY', KEYS[i], tonumber(ARGV[i*2-1]))
  redis.call('EXPIRE', KEYS[i], tonumber(ARGV[#ARGV]), 'NX')
end
return 1
`)

// Redis implements Storage backed by a Redis server. Dedup sets and quota
// counters use native atomic operations, which keeps conditional writes
// correct across multiple agent processes sharing one server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to a Redis server at addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func prefsKey(userID string) string        { return "user:" + userID + ":prefs" }
func deliveredKey(fp string) string        { return "dedup:" + fp + ":delivered" }
func articleKey(fp string) string          { return "dedup:" + fp + ":first_seen" }
func summaryKey(userID, fp string) string  { return "summary:" + userID + ":" + fp }
func summaryIndexKey(userID string) string { return "summaries:" + userID }

const activeUsersKey = "users:active"

// UpsertPreferences stores a subscriber's preferences and maintains the
// active-user index.
func (r *Redis) UpsertPreferences(ctx context.Context, p *model.UserPreferences) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, prefsKey(p.UserID), data, 0)
	if p.IsActive {
		pipe.SAdd(ctx, activeUsersKey, p.UserID)
	} else {
		pipe.SRem(ctx, activeUsersKey, p.UserID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// GetPreferences returns a subscriber's preferences by user ID.
func (r *Redis) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	data, err := r.client.Get(ctx, prefsKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	var p model.UserPreferences
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &p, nil
}

// ListActiveUsers returns all subscribers with the active flag set.
func (r *Redis) ListActiveUsers(ctx context.Context) ([]model.UserPreferences, error) {
	ids, err := r.client.SMembers(ctx, activeUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	var users []model.UserPreferences
	for _, id := range ids {
		p, err := r.GetPreferences(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, *p)
	}
	return users, nil
}

// RecordArticle records the first sighting of a fingerprint system-wide.
func (r *Redis) RecordArticle(ctx context.Context, fingerprint string, firstSeen time.Time) error {
	err := r.client.SetNX(ctx, articleKey(fingerprint), firstSeen.UTC().Format(time.RFC3339), 0).Err()
	if err != nil {
		return fmt.Errorf("record article: %w", err)
	}
	return nil
}

// IsDelivered checks whether a fingerprint was already delivered to a user.
func (r *Redis) IsDelivered(ctx context.Context, fingerprint, userID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, deliveredKey(fingerprint), userID).Result()
	if err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return ok, nil
}

// MarkDelivered adds a user to a fingerprint's delivered set if absent.
// SADD is natively add-if-absent, so concurrent runs cannot lose members.
func (r *Redis) MarkDelivered(ctx context.Context, fingerprint, userID string) error {
	if err := r.client.SAdd(ctx, deliveredKey(fingerprint), userID).Err(); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// SeenByAnyUser checks whether any user has ever been delivered the fingerprint.
func (r *Redis) SeenByAnyUser(ctx context.Context, fingerprint string) (bool, error) {
	n, err := r.client.SCard(ctx, deliveredKey(fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return n > 0, nil
}

// PutSummary stores a generated summary, keeping the first write on conflict.
func (r *Redis) PutSummary(ctx context.Context, s *model.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.SetNX(ctx, summaryKey(s.UserID, s.Fingerprint), data, 0)
	pipe.SAdd(ctx, summaryIndexKey(s.UserID), s.Fingerprint)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// ListSummaries returns all stored summaries for a user.
func (r *Redis) ListSummaries(ctx context.Context, userID string) ([]model.Summary, error) {
	fps, err := r.client.SMembers(ctx, summaryIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	var sums []model.Summary
	for _, fp := range fps {
		data, err := r.client.Get(ctx, summaryKey(userID, fp)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get summary: %w", err)
		}
		var s model.Summary
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		sums = append(sums, s)
	}
	return sums, nil
}

// TryConsumeQuota checks and increments all grants atomically via a Lua script.
func (r *Redis) TryConsumeQuota(ctx context.Context, grants []model.QuotaGrant) (bool, error) {
	keys := make([]string, 0, len(grants))
	args := make([]any, 0, len(grants)*2+1)
	for _, g := range grants {
		keys = append(keys, quotaKey(g.Category, g.Bucket))
		args = append(args, g.Amount, g.Cap)
	}
	args = append(args, int(quotaKeyTTL.Seconds()))

	granted, err := consumeScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("consume quota: %w", err)
	}
	return granted == 1, nil
}

// QuotaUsed returns the used count for a counter, zero if it does not exist.
func (r *Redis) QuotaUsed(ctx context.Context, category, bucket string) (int, error) {
	used, err := r.client.Get(ctx, quotaKey(category, bucket)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query quota: %w", err)
	}
	return used, nil
}

func quotaKey(category, bucket string) string {
	return "quota:" + category + ":" + bucket
}
