package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
)

// RedisStore keeps session snapshots as JSON with a TTL and orders them in a
// sorted set scored by UpdatedAt, so every pod shares one LRU view.
type RedisStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger, metrics *metrics.Metrics) *RedisStore {
	return &RedisStore{
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func sessionKey(id string) string {
	return constants.SessionKeyPrefix + id
}

func (r *RedisStore) observe(op string, start time.Time) {
	r.metrics.RedisOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	defer r.observe("session_get", time.Now())

	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	defer r.observe("session_put", time.Now())

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(s.SessionID), data, r.ttl)
	pipe.ZAdd(ctx, constants.SessionsTouchedKey, &redis.Z{
		Score:  float64(s.UpdatedAt.UnixMilli()),
		Member: s.SessionID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WithError(err).WithField("session_id", s.SessionID).Error("Failed to store session")
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	defer r.observe("session_delete", time.Now())

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, constants.SessionsTouchedKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// trimExpired drops index entries whose session key has outlived the TTL.
// Redis expires the key but never the sorted set member.
func (r *RedisStore) trimExpired(ctx context.Context) error {
	cutoff := r.now().Add(-r.ttl).UnixMilli()
	if err := r.rdb.ZRemRangeByScore(ctx, constants.SessionsTouchedKey, "-inf", fmt.Sprintf("(%d", cutoff)).Err(); err != nil {
		return fmt.Errorf("failed to trim expired sessions: %w", err)
	}
	return nil
}

func (r *RedisStore) Len(ctx context.Context) (int, error) {
	if err := r.trimExpired(ctx); err != nil {
		return 0, err
	}
	n, err := r.rdb.ZCard(ctx, constants.SessionsTouchedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

func (r *RedisStore) Oldest(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := r.trimExpired(ctx); err != nil {
		return nil, err
	}
	ids, err := r.rdb.ZRange(ctx, constants.SessionsTouchedKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list oldest sessions: %w", err)
	}
	return ids, nil
}
