package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
)

// StreamNotifier publishes notifications to a Redis stream. A StreamConsumer
// in the same consumer group performs the actual delivery.
type StreamNotifier struct {
	rdb     *redis.Client
	stream  string
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewStreamNotifier(rdb *redis.Client, logger *logrus.Logger, metrics *metrics.Metrics) *StreamNotifier {
	return &StreamNotifier{
		rdb:     rdb,
		stream:  constants.NotificationsStream,
		logger:  logger,
		metrics: metrics,
	}
}

// EnsureGroup creates the consumer group (and the stream) if missing.
func EnsureGroup(ctx context.Context, rdb *redis.Client, stream, group string) error {
	err := rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (sn *StreamNotifier) Send(ctx context.Context, channel string, n Notification) error {
	start := time.Now()
	defer func() {
		sn.metrics.RedisOperationDuration.WithLabelValues("xadd_notification").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	messageID, err := sn.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: sn.stream,
		Values: map[string]interface{}{
			"channel":       channel,
			"escalation_id": n.EscalationID,
			"user_id":       n.UserID,
			"level":         string(n.Level),
			"created_at":    n.CreatedAt.UnixMilli(),
			"payload":       string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add notification to stream: %w", err)
	}

	sn.logger.WithFields(logrus.Fields{
		"channel":       channel,
		"escalation_id": n.EscalationID,
		"message_id":    messageID,
	}).Debug("Published notification to stream")
	return nil
}
