package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careroute/pkg/constants"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
	"careroute/pkg/notify"
	"careroute/pkg/store"
)

var fixedNow = time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type channelRecorder struct {
	mu     sync.Mutex
	sent   []string
	failOn map[string]bool
}

func (c *channelRecorder) Send(ctx context.Context, channel string, n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn[channel] {
		return errors.New("gateway rejected message")
	}
	c.sent = append(c.sent, channel)
	return nil
}

type panicStore struct{ store.Nop }

func (panicStore) SaveEscalationRecord(ctx context.Context, rec *models.EscalationRecord) error {
	panic("disk on fire")
}

func newTestEngine(t *testing.T, st Store, n notify.Notifier, opts ...Option) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewEngine(DefaultRules(), st, n, logger, metrics.NewTestMetrics(), opts...), hook
}

func TestTrigger_CrisisWithFailingSMS(t *testing.T) {
	mem := store.NewMemory()
	n := &channelRecorder{failOn: map[string]bool{constants.ChannelSMS: true}}
	sched := NewMemoryScheduler()
	engine, _ := newTestEngine(t, mem, n, WithScheduler(sched))

	rec := engine.Trigger(context.Background(), Request{UserID: "u1", Level: "crisis", Context: "user expressed intent"})

	require.NotNil(t, rec)
	assert.Equal(t, models.LevelCrisis, rec.Level)
	assert.Equal(t, map[string]bool{
		constants.ChannelEmail: true,
		constants.ChannelSMS:   false,
		constants.ChannelPush:  true,
	}, rec.NotificationsSent)
	assert.Equal(t, map[string]bool{
		constants.ActionImmediateHelpline:     true,
		constants.ActionCounselorNotification: true,
		constants.ActionSafetyCheck:           true,
	}, rec.ActionsTaken)
	assert.Equal(t, fixedNow.Add(5*time.Minute), rec.ExpectedResponseBy)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.False(t, rec.EmergencyFallback)

	saved, err := mem.ListEscalations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, rec.EscalationID, saved[0].EscalationID)

	pending, _ := sched.Pending(context.Background())
	assert.EqualValues(t, 1, pending)
}

// Urgent rules never use sms, so a failing sms gateway leaves the record untouched.
func TestTrigger_UrgentWithFailingSMS(t *testing.T) {
	mem := store.NewMemory()
	n := &channelRecorder{failOn: map[string]bool{constants.ChannelSMS: true}}
	sched := NewMemoryScheduler()
	engine, _ := newTestEngine(t, mem, n, WithScheduler(sched))

	rec := engine.Trigger(context.Background(), Request{UserID: "u1", Level: "urgent", Context: "severe anxiety"})

	require.NotNil(t, rec)
	assert.Equal(t, models.LevelUrgent, rec.Level)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Equal(t, fixedNow.Add(2*time.Hour), rec.ExpectedResponseBy)
	assert.NotContains(t, rec.NotificationsSent, constants.ChannelSMS)
	assert.Equal(t, map[string]bool{
		constants.ChannelEmail: true,
		constants.ChannelPush:  true,
	}, rec.NotificationsSent)
	assert.True(t, rec.ActionsTaken[constants.ActionSameDayBooking])
	assert.False(t, rec.EmergencyFallback)

	pending, _ := sched.Pending(context.Background())
	assert.EqualValues(t, 1, pending)
}

func TestTrigger_DeadlinesPerLevel(t *testing.T) {
	for level, want := range map[string]time.Duration{
		"crisis": 5 * time.Minute,
		"urgent": 2 * time.Hour,
		"high":   24 * time.Hour,
		"normal": 72 * time.Hour,
	} {
		engine, _ := newTestEngine(t, store.NewMemory(), &channelRecorder{})
		rec := engine.Trigger(context.Background(), Request{UserID: "u1", Level: level})
		assert.Equal(t, rec.TriggeredAt.Add(want), rec.ExpectedResponseBy, level)
	}
}

func TestTrigger_UnknownLevelBehavesAsNormal(t *testing.T) {
	mem := store.NewMemory()
	engine, _ := newTestEngine(t, mem, &channelRecorder{})

	rec := engine.Trigger(context.Background(), Request{UserID: "u1", Level: "catastrophic", Context: "weekly check"})

	assert.Equal(t, models.LevelNormal, rec.Level)
	assert.Equal(t, map[string]bool{constants.ActionStandardBooking: true}, rec.ActionsTaken)
	assert.Equal(t, map[string]bool{constants.ChannelEmail: true}, rec.NotificationsSent)
	assert.Equal(t, fixedNow.Add(72*time.Hour), rec.ExpectedResponseBy)

	bookings, err := mem.ListBookings(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, constants.ExpertStudentCounselor, bookings[0].ExpertType)
	assert.Equal(t, "Escalation "+rec.EscalationID+": weekly check", bookings[0].Notes)
}

func TestTrigger_PriorityBookingGoesToPsychologist(t *testing.T) {
	mem := store.NewMemory()
	engine, _ := newTestEngine(t, mem, &channelRecorder{})

	rec := engine.Trigger(context.Background(), Request{UserID: "u2", Level: "HIGH"})

	assert.True(t, rec.ActionsTaken[constants.ActionPriorityBooking])
	bookings, _ := mem.ListBookings(context.Background(), "u2")
	require.Len(t, bookings, 1)
	assert.Equal(t, constants.ExpertPsychologist, bookings[0].ExpertType)
}

func TestTrigger_FollowUpOnlyForCrisisAndUrgent(t *testing.T) {
	for level, want := range map[string]int64{"crisis": 1, "urgent": 1, "high": 0, "normal": 0} {
		sched := NewMemoryScheduler()
		engine, _ := newTestEngine(t, store.NewMemory(), &channelRecorder{}, WithScheduler(sched))
		engine.Trigger(context.Background(), Request{UserID: "u1", Level: level})

		pending, _ := sched.Pending(context.Background())
		assert.Equal(t, want, pending, level)
	}
}

func TestTrigger_DegradedStoreStillReturnsRecord(t *testing.T) {
	engine, hook := newTestEngine(t, store.Nop{}, &channelRecorder{})

	rec := engine.Trigger(context.Background(), Request{UserID: "u1", Level: "urgent"})

	require.NotNil(t, rec)
	assert.False(t, rec.EmergencyFallback)
	assert.False(t, rec.ActionsTaken[constants.ActionSameDayBooking])
	assert.False(t, rec.ActionsTaken[constants.ActionCounselorNotification])
	assert.True(t, rec.NotificationsSent[constants.ChannelEmail])

	var persistErr bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to persist escalation record" {
			persistErr = true
		}
	}
	assert.True(t, persistErr)
}

func TestTrigger_UnknownAndPanickingActionsRecordFalse(t *testing.T) {
	rules := DefaultRules()
	rules[models.LevelNormal] = Rule{
		MaxResponseTime: time.Hour,
		Channels:        []string{constants.ChannelEmail},
		Actions:         []string{"carrier_pigeon", "explode", constants.ActionStandardBooking},
	}
	logger, _ := test.NewNullLogger()
	engine := NewEngine(rules, store.NewMemory(), &channelRecorder{}, logger, metrics.NewTestMetrics(),
		WithClock(fixedClock),
		WithAction("explode", func(ctx context.Context, e *Engine, rec *models.EscalationRecord) (bool, error) {
			panic("boom")
		}),
	)

	rec := engine.Trigger(context.Background(), Request{UserID: "u1", Level: "normal"})

	assert.Equal(t, map[string]bool{
		"carrier_pigeon":                false,
		"explode":                       false,
		constants.ActionStandardBooking: true,
	}, rec.ActionsTaken)
	assert.False(t, rec.EmergencyFallback)
}

func TestTrigger_EmergencyFallbackWhenRuleMissing(t *testing.T) {
	mem := store.NewMemory()
	logger, hook := test.NewNullLogger()
	rules := DefaultRules()
	delete(rules, models.LevelNormal)
	engine := NewEngine(rules, mem, &channelRecorder{}, logger, metrics.NewTestMetrics(), WithClock(fixedClock))

	rec := engine.Trigger(context.Background(), Request{UserID: "u9", Level: "normal", Context: "ctx"})

	require.NotNil(t, rec)
	assert.True(t, rec.EmergencyFallback)
	assert.Equal(t, models.LevelCrisis, rec.Level)
	assert.Contains(t, rec.EscalationID, "EMERGENCY_u9_")
	assert.True(t, rec.ActionsTaken[actionEmergencyBooking])
	assert.Equal(t, fixedNow.Add(5*time.Minute), rec.ExpectedResponseBy)

	bookings, _ := mem.ListBookings(context.Background(), "u9")
	require.Len(t, bookings, 1)
	assert.Equal(t, constants.ExpertStudentCounselor, bookings[0].ExpertType)
	assert.Equal(t, "crisis", bookings[0].UrgencyLevel)
	assert.Equal(t, constants.EmergencyBookingNotes, bookings[0].Notes)

	var critical *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["severity"] == "critical" {
			critical = e
			break
		}
	}
	require.NotNil(t, critical)
	assert.Equal(t, logrus.ErrorLevel, critical.Level)
}

func TestTrigger_EmergencyFallbackOnPanic(t *testing.T) {
	engine, hook := newTestEngine(t, panicStore{}, &channelRecorder{})

	rec := engine.Trigger(context.Background(), Request{UserID: "u3", Level: "urgent"})

	require.NotNil(t, rec)
	assert.True(t, rec.EmergencyFallback)
	assert.False(t, rec.ActionsTaken[actionEmergencyBooking])

	var criticalCount int
	for _, e := range hook.AllEntries() {
		if e.Data["severity"] == "critical" {
			criticalCount++
		}
	}
	assert.GreaterOrEqual(t, criticalCount, 1)
}

func TestEngine_Resolve(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	sched := NewMemoryScheduler()
	engine, _ := newTestEngine(t, mem, &channelRecorder{}, WithScheduler(sched))

	rec := engine.Trigger(ctx, Request{UserID: "u1", Level: "urgent"})

	ok, err := engine.Resolve(ctx, rec.EscalationID)
	require.NoError(t, err)
	assert.True(t, ok)

	pending, _ := sched.Pending(ctx)
	assert.EqualValues(t, 0, pending)

	saved, err := mem.ListEscalations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, models.StatusResolved, saved[0].Status)

	ok, err = engine.Resolve(ctx, "ESC_unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}
