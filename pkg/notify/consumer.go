package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
)

// StreamConsumer reads published notifications from the stream and hands
// them to a delivery Notifier. Messages that fail delivery stay pending and
// are reclaimed after they have been idle for minIdle.
type StreamConsumer struct {
	rdb          *redis.Client
	delivery     Notifier
	stream       string
	group        string
	consumerName string
	minIdle      time.Duration
	recoverEvery time.Duration
	logger       *logrus.Logger
	metrics      *metrics.Metrics
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewStreamConsumer(rdb *redis.Client, delivery Notifier, group, podID string, logger *logrus.Logger, metrics *metrics.Metrics) *StreamConsumer {
	return &StreamConsumer{
		rdb:          rdb,
		delivery:     delivery,
		stream:       constants.NotificationsStream,
		group:        group,
		consumerName: fmt.Sprintf("consumer-%s", podID),
		minIdle:      constants.DefaultPendingMinIdle,
		recoverEvery: constants.DefaultPendingRecoveryInterval,
		logger:       logger,
		metrics:      metrics,
		stopCh:       make(chan struct{}),
	}
}

func (sc *StreamConsumer) Start(ctx context.Context) error {
	if err := EnsureGroup(ctx, sc.rdb, sc.stream, sc.group); err != nil {
		return err
	}

	sc.logger.WithFields(logrus.Fields{
		"consumer_name":  sc.consumerName,
		"consumer_group": sc.group,
	}).Info("Starting notification stream consumer")

	sc.wg.Add(2)
	go sc.consumeLoop(ctx)
	go sc.pendingMessagesRecovery(ctx)
	return nil
}

// Stop signals both loops and waits for them to return.
func (sc *StreamConsumer) Stop() {
	sc.stopOnce.Do(func() { close(sc.stopCh) })
	sc.wg.Wait()
}

func (sc *StreamConsumer) consumeLoop(ctx context.Context) {
	defer sc.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		default:
			sc.consumeMessages(ctx)
		}
	}
}

func (sc *StreamConsumer) consumeMessages(ctx context.Context) {
	start := time.Now()

	streams, err := sc.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    sc.group,
		Consumer: sc.consumerName,
		Streams:  []string{sc.stream, ">"},
		Count:    10,
		Block:    time.Second,
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			sc.logger.WithError(err).Error("Failed to read from notification stream")
			// avoid spinning while Redis is down
			select {
			case <-time.After(time.Second):
			case <-sc.stopCh:
			case <-ctx.Done():
			}
		}
		return
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			sc.processMessage(ctx, message)
		}
	}

	if len(streams) > 0 {
		sc.metrics.StreamProcessingDuration.Observe(time.Since(start).Seconds())
	}
}

// ProcessOnce reads and handles a single batch. Tests use it to drive the
// consumer without the background loops.
func (sc *StreamConsumer) ProcessOnce(ctx context.Context) error {
	if err := EnsureGroup(ctx, sc.rdb, sc.stream, sc.group); err != nil {
		return err
	}
	sc.consumeMessages(ctx)
	return nil
}

func (sc *StreamConsumer) processMessage(ctx context.Context, message redis.XMessage) {
	channel, n, err := parseNotification(message)
	if err != nil {
		sc.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to parse notification")
		sc.metrics.StreamMessagesProcessed.WithLabelValues("parse_error").Inc()
		sc.acknowledgeMessage(ctx, message.ID)
		return
	}

	if err := sc.delivery.Send(ctx, channel, n); err != nil {
		sc.logger.WithError(err).WithFields(logrus.Fields{
			"channel":       channel,
			"escalation_id": n.EscalationID,
			"message_id":    message.ID,
		}).Error("Failed to deliver notification")
		sc.metrics.StreamMessagesProcessed.WithLabelValues("delivery_error").Inc()
		return
	}

	if err := sc.acknowledgeMessage(ctx, message.ID); err != nil {
		sc.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to acknowledge message")
		return
	}
	sc.metrics.StreamMessagesProcessed.WithLabelValues("success").Inc()
}

func parseNotification(message redis.XMessage) (string, Notification, error) {
	var n Notification

	channel, ok := message.Values["channel"].(string)
	if !ok || channel == "" {
		return "", n, fmt.Errorf("missing or invalid channel")
	}
	payload, ok := message.Values["payload"].(string)
	if !ok {
		return "", n, fmt.Errorf("missing or invalid payload")
	}
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return "", n, fmt.Errorf("invalid payload: %w", err)
	}
	if n.EscalationID == "" {
		return "", n, fmt.Errorf("payload without escalation_id")
	}
	return channel, n, nil
}

func (sc *StreamConsumer) acknowledgeMessage(ctx context.Context, messageID string) error {
	return sc.rdb.XAck(ctx, sc.stream, sc.group, messageID).Err()
}

func (sc *StreamConsumer) pendingMessagesRecovery(ctx context.Context) {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.recoverEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		case <-ticker.C:
			sc.processPendingMessages(ctx)
		}
	}
}

func (sc *StreamConsumer) processPendingMessages(ctx context.Context) {
	pending, err := sc.rdb.XPending(ctx, sc.stream, sc.group).Result()
	if err != nil {
		sc.logger.WithError(err).Error("Failed to get pending notifications")
		return
	}
	if pending.Count == 0 {
		return
	}

	sc.logger.WithField("pending_count", pending.Count).Info("Reclaiming pending notifications")

	messages, _, err := sc.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   sc.stream,
		Group:    sc.group,
		Consumer: sc.consumerName,
		MinIdle:  sc.minIdle,
		Count:    10,
		Start:    "0-0",
	}).Result()
	if err != nil {
		sc.logger.WithError(err).Error("Failed to auto-claim pending notifications")
		return
	}

	for _, message := range messages {
		sc.processMessage(ctx, message)
	}
}
