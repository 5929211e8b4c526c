package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
	"careroute/pkg/notify"
)

const actionEmergencyBooking = "emergency_booking"

// Store is the subset of the persistence layer the engine needs.
type Store interface {
	GetHelplines(ctx context.Context, region string) ([]models.Helpline, error)
	GetExperts(ctx context.Context, tags []string) ([]models.Expert, error)
	CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error)
	SaveEscalationRecord(ctx context.Context, rec *models.EscalationRecord) error
	UpdateEscalationStatus(ctx context.Context, escalationID string, status models.EscalationStatus) (bool, error)
}

// Request describes an escalation trigger. Level is free-form; anything
// unrecognized is treated as normal.
type Request struct {
	UserID  string
	Level   string
	Context string
	Message string
}

type Engine struct {
	rules     Rules
	actions   map[string]Action
	store     Store
	notifier  notify.Notifier
	scheduler Scheduler
	region    string
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Engine)

// WithScheduler enables follow-up scheduling for crisis and urgent escalations.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRegion(region string) Option {
	return func(e *Engine) { e.region = region }
}

// WithAction registers or replaces the handler for a named action.
func WithAction(name string, a Action) Option {
	return func(e *Engine) { e.actions[name] = a }
}

func NewEngine(rules Rules, store Store, notifier notify.Notifier, logger *logrus.Logger, metrics *metrics.Metrics, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		actions:  defaultActions(),
		store:    store,
		notifier: notifier,
		region:   "India",
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rules() Rules { return e.rules }

// Trigger runs the escalation protocol for req and always returns a record.
// Individual action and channel failures are recorded as false; a failure of
// the protocol itself falls back to an emergency crisis booking.
func (e *Engine) Trigger(ctx context.Context, req Request) (rec *models.EscalationRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = e.emergencyFallback(ctx, req, fmt.Errorf("escalation panicked: %v", r))
		}
	}()

	rec, err := e.trigger(ctx, req)
	if err != nil {
		return e.emergencyFallback(ctx, req, err)
	}
	return rec
}

func (e *Engine) trigger(ctx context.Context, req Request) (*models.EscalationRecord, error) {
	level := models.ParseEscalationLevel(req.Level)
	rule, ok := e.rules[level]
	if !ok {
		return nil, fmt.Errorf("no escalation rule for level %s", level)
	}

	triggeredAt := e.now()
	rec := &models.EscalationRecord{
		EscalationID:       fmt.Sprintf("ESC_%s_%d", req.UserID, triggeredAt.UnixNano()),
		UserID:             req.UserID,
		Level:              level,
		TriggeredAt:        triggeredAt,
		ActionsTaken:       make(map[string]bool, len(rule.Actions)),
		NotificationsSent:  make(map[string]bool, len(rule.Channels)),
		Status:             models.StatusActive,
		ExpectedResponseBy: triggeredAt.Add(rule.MaxResponseTime),
		Context:            req.Context,
		Message:            req.Message,
	}

	log := e.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"user_id":       rec.UserID,
		"level":         level,
	})
	log.Warn("Escalation triggered")
	e.metrics.EscalationsTriggered.WithLabelValues(string(level)).Inc()

	for _, name := range rule.Actions {
		rec.ActionsTaken[name] = e.runAction(ctx, name, rec)
	}

	e.fanOut(ctx, rule.Channels, rec)

	if err := e.store.SaveEscalationRecord(ctx, rec); err != nil {
		log.WithError(err).Error("Failed to persist escalation record")
		e.metrics.PersistenceFailures.WithLabelValues("save_escalation").Inc()
	}

	if e.scheduler != nil && (level == models.LevelCrisis || level == models.LevelUrgent) {
		if err := e.scheduler.ScheduleFollowUp(ctx, rec, rec.ExpectedResponseBy); err != nil {
			log.WithError(err).Error("Failed to schedule escalation follow-up")
		}
	}

	return rec, nil
}

func (e *Engine) runAction(ctx context.Context, name string, rec *models.EscalationRecord) (ok bool) {
	log := e.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"action":        name,
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Escalation action panicked")
			ok = false
		}
		outcome := "failure"
		if ok {
			outcome = "success"
		}
		e.metrics.EscalationActions.WithLabelValues(name, outcome).Inc()
	}()

	action, found := e.actions[name]
	if !found {
		log.Warn("Unknown escalation action")
		return false
	}

	ok, err := action(ctx, e, rec)
	if err != nil {
		log.WithError(err).Error("Escalation action failed")
		return false
	}
	return ok
}

// fanOut sends one notification per channel concurrently. A channel failure
// never cancels its siblings.
func (e *Engine) fanOut(ctx context.Context, channels []string, rec *models.EscalationRecord) {
	n := notify.FromRecord(rec, rec.TriggeredAt)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, channel := range channels {
		g.Go(func() error {
			sent := e.send(ctx, channel, n)
			mu.Lock()
			rec.NotificationsSent[channel] = sent
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

func (e *Engine) send(ctx context.Context, channel string, n notify.Notification) (sent bool) {
	log := e.logger.WithFields(logrus.Fields{
		"escalation_id": n.EscalationID,
		"channel":       channel,
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Notifier panicked")
			sent = false
		}
		outcome := "failure"
		if sent {
			outcome = "success"
		}
		e.metrics.NotificationsSent.WithLabelValues(channel, outcome).Inc()
	}()

	if e.notifier == nil {
		log.Error("No notifier configured")
		return false
	}
	if err := e.notifier.Send(ctx, channel, n); err != nil {
		log.WithError(err).Error("Failed to send escalation notification")
		return false
	}
	return true
}

func (e *Engine) emergencyFallback(ctx context.Context, req Request, cause error) *models.EscalationRecord {
	now := e.now()
	e.metrics.EmergencyFallbacks.Inc()
	e.logger.WithError(cause).WithFields(logrus.Fields{
		"severity": "critical",
		"user_id":  req.UserID,
		"level":    req.Level,
	}).Error("Escalation system failure, emergency fallback engaged")

	maxResponse := 5 * time.Minute
	if rule, ok := e.rules[models.LevelCrisis]; ok {
		maxResponse = rule.MaxResponseTime
	}

	rec := &models.EscalationRecord{
		EscalationID:       fmt.Sprintf("EMERGENCY_%s_%d", req.UserID, now.UnixNano()),
		UserID:             req.UserID,
		Level:              models.LevelCrisis,
		TriggeredAt:        now,
		ActionsTaken:       map[string]bool{actionEmergencyBooking: e.emergencyBooking(ctx, req.UserID, now)},
		NotificationsSent:  map[string]bool{},
		Status:             models.StatusActive,
		ExpectedResponseBy: now.Add(maxResponse),
		Context:            req.Context,
		Message:            req.Message,
		EmergencyFallback:  true,
	}

	func() {
		defer func() { recover() }()
		if err := e.store.SaveEscalationRecord(ctx, rec); err != nil {
			e.metrics.PersistenceFailures.WithLabelValues("save_escalation").Inc()
		}
	}()
	return rec
}

func (e *Engine) emergencyBooking(ctx context.Context, userID string, now time.Time) (booked bool) {
	defer func() {
		if r := recover(); r != nil {
			booked = false
		}
		if !booked {
			e.logger.WithFields(logrus.Fields{
				"severity": "critical",
				"user_id":  userID,
			}).Error("Emergency booking could not be created")
		}
	}()

	_, err := e.store.CreateBooking(ctx, models.BookingRequest{
		UserID:        userID,
		ExpertType:    constants.ExpertStudentCounselor,
		PreferredTime: now,
		UrgencyLevel:  string(models.LevelCrisis),
		Notes:         constants.EmergencyBookingNotes,
	})
	return err == nil
}

// Resolve closes the pending follow-up for an escalation and marks the stored
// record resolved. It reports whether either existed.
func (e *Engine) Resolve(ctx context.Context, escalationID string) (bool, error) {
	var cleared bool
	if e.scheduler != nil {
		var err error
		if cleared, err = e.scheduler.Resolve(ctx, escalationID); err != nil {
			return false, err
		}
	}

	updated, err := e.store.UpdateEscalationStatus(ctx, escalationID, models.StatusResolved)
	if err != nil {
		e.metrics.PersistenceFailures.WithLabelValues("resolve_escalation").Inc()
		e.logger.WithError(err).WithField("escalation_id", escalationID).Warn("Failed to mark escalation resolved")
	}
	return cleared || updated, nil
}
