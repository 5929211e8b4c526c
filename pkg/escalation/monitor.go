package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
	"careroute/pkg/notify"
)

// FollowUpMonitor publishes a follow_up notification for every escalation
// whose response deadline has passed. Only the leader scans.
type FollowUpMonitor struct {
	scheduler Scheduler
	notifier  notify.Notifier
	leader    Leadership
	interval  time.Duration
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewFollowUpMonitor(scheduler Scheduler, notifier notify.Notifier, leader Leadership, interval time.Duration, logger *logrus.Logger, metrics *metrics.Metrics) *FollowUpMonitor {
	return &FollowUpMonitor{
		scheduler: scheduler,
		notifier:  notifier,
		leader:    leader,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

func (m *FollowUpMonitor) Start(ctx context.Context) {
	m.logger.WithField("interval", m.interval).Info("Starting follow-up monitor")

	m.wg.Add(1)
	go m.loop(ctx)
}

func (m *FollowUpMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *FollowUpMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.leader.IsLeader(ctx) {
				m.Check(ctx)
			}
		}
	}
}

// Check publishes overdue follow-ups and returns how many were published. A
// follow-up is claimed before publishing so that two replicas never both send.
func (m *FollowUpMonitor) Check(ctx context.Context) int {
	start := time.Now()
	defer func() {
		m.metrics.FollowUpCheckDuration.Observe(time.Since(start).Seconds())
	}()

	now := m.now()
	due, err := m.scheduler.Due(ctx, now)
	if err != nil {
		m.logger.WithError(err).Error("Failed to get due follow-ups")
		return 0
	}

	published := 0
	for _, f := range due {
		claimed, err := m.scheduler.Resolve(ctx, f.EscalationID)
		if err != nil {
			m.logger.WithError(err).WithField("escalation_id", f.EscalationID).Error("Failed to claim follow-up")
			continue
		}
		if !claimed {
			continue
		}

		n := notify.Notification{
			EscalationID:       f.EscalationID,
			UserID:             f.UserID,
			Level:              f.Level,
			Context:            f.Context,
			ExpectedResponseBy: f.DueAt,
			CreatedAt:          now,
		}
		if err := m.notifier.Send(ctx, constants.ChannelFollowUp, n); err != nil {
			m.logger.WithError(err).WithField("escalation_id", f.EscalationID).Error("Failed to publish follow-up")
			m.metrics.NotificationsSent.WithLabelValues(constants.ChannelFollowUp, "failure").Inc()
			m.requeue(ctx, f)
			continue
		}

		published++
		m.metrics.OverdueFollowUps.Inc()
		m.metrics.NotificationsSent.WithLabelValues(constants.ChannelFollowUp, "success").Inc()
		m.logger.WithFields(logrus.Fields{
			"escalation_id": f.EscalationID,
			"user_id":       f.UserID,
			"level":         f.Level,
			"overdue_by":    now.Sub(f.DueAt),
		}).Warn("Escalation response deadline passed, follow-up published")
	}

	if pending, err := m.scheduler.Pending(ctx); err == nil {
		m.metrics.PendingFollowUps.Set(float64(pending))
	}
	return published
}

// requeue puts a claimed follow-up back with its original deadline so the next
// scan retries it.
func (m *FollowUpMonitor) requeue(ctx context.Context, f FollowUp) {
	rec := &models.EscalationRecord{
		EscalationID: f.EscalationID,
		UserID:       f.UserID,
		Level:        f.Level,
		Context:      f.Context,
	}
	if err := m.scheduler.ScheduleFollowUp(ctx, rec, f.DueAt); err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"escalation_id": f.EscalationID,
			"severity":      "critical",
		}).Error("Failed to requeue follow-up after publish failure")
	}
}
