package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
)

// RedisScheduler stores follow-up deadlines in a sorted set scored by due time
// in milliseconds, with the follow-up bodies in a hash.
type RedisScheduler struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewRedisScheduler(rdb *redis.Client, logger *logrus.Logger, metrics *metrics.Metrics) *RedisScheduler {
	return &RedisScheduler{
		rdb:     rdb,
		logger:  logger,
		metrics: metrics,
	}
}

func (rs *RedisScheduler) observe(op string, start time.Time) {
	rs.metrics.RedisOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (rs *RedisScheduler) ScheduleFollowUp(ctx context.Context, rec *models.EscalationRecord, due time.Time) error {
	defer rs.observe("schedule_followup", time.Now())

	body, err := json.Marshal(FollowUp{
		EscalationID: rec.EscalationID,
		UserID:       rec.UserID,
		Level:        rec.Level,
		Context:      rec.Context,
		DueAt:        due,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal follow-up: %w", err)
	}

	pipe := rs.rdb.TxPipeline()
	pipe.ZAdd(ctx, constants.FollowUpsKey, &redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: rec.EscalationID,
	})
	pipe.HSet(ctx, constants.FollowUpRecordsKey, rec.EscalationID, string(body))
	if _, err := pipe.Exec(ctx); err != nil {
		rs.logger.WithError(err).WithField("escalation_id", rec.EscalationID).Error("Failed to schedule follow-up")
		return fmt.Errorf("failed to schedule follow-up: %w", err)
	}

	rs.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"due_at":        due,
	}).Debug("Scheduled escalation follow-up")
	return nil
}

func (rs *RedisScheduler) Due(ctx context.Context, now time.Time) ([]FollowUp, error) {
	defer rs.observe("due_followups", time.Now())

	ids, err := rs.rdb.ZRangeByScore(ctx, constants.FollowUpsKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get due follow-ups: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	bodies, err := rs.rdb.HMGet(ctx, constants.FollowUpRecordsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load follow-ups: %w", err)
	}

	out := make([]FollowUp, 0, len(ids))
	for i, raw := range bodies {
		s, ok := raw.(string)
		if !ok {
			// body missing; keep the id so it can still be resolved
			out = append(out, FollowUp{EscalationID: ids[i], DueAt: now})
			continue
		}
		var f FollowUp
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			rs.logger.WithError(err).WithField("escalation_id", ids[i]).Warn("Corrupt follow-up body")
			f = FollowUp{EscalationID: ids[i], DueAt: now}
		}
		out = append(out, f)
	}
	return out, nil
}

func (rs *RedisScheduler) Resolve(ctx context.Context, escalationID string) (bool, error) {
	defer rs.observe("resolve_followup", time.Now())

	pipe := rs.rdb.TxPipeline()
	removed := pipe.ZRem(ctx, constants.FollowUpsKey, escalationID)
	pipe.HDel(ctx, constants.FollowUpRecordsKey, escalationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to resolve follow-up: %w", err)
	}
	return removed.Val() == 1, nil
}

func (rs *RedisScheduler) Pending(ctx context.Context) (int64, error) {
	defer rs.observe("pending_followups", time.Now())

	count, err := rs.rdb.ZCard(ctx, constants.FollowUpsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count follow-ups: %w", err)
	}
	return count, nil
}
