package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careroute/pkg/capability"
	"careroute/pkg/constants"
	"careroute/pkg/crisis"
	"careroute/pkg/escalation"
	"careroute/pkg/language"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
	"careroute/pkg/nlg"
	"careroute/pkg/notify"
	"careroute/pkg/routing"
	"careroute/pkg/session"
	"careroute/pkg/store"
)

// stubClassifier returns a fixed analysis for every message.
type stubClassifier struct {
	nlg.Client
	analysis models.Analysis
}

func (s stubClassifier) Analyze(ctx context.Context, message string, history []string) (models.Analysis, error) {
	return s.analysis, nil
}

type brokenCapability struct{}

func (brokenCapability) ID() models.CapabilityID { return models.CapabilityCBT }
func (brokenCapability) Tags() []string          { return []string{"anxiety"} }
func (brokenCapability) Priority() int           { return 2 }
func (brokenCapability) Respond(ctx context.Context, req capability.Request) (capability.Response, error) {
	return capability.Response{}, errors.New("generator exploded")
}

type fixture struct {
	orch     *Orchestrator
	store    *store.Memory
	sessions *session.MemoryStore
	gen      *nlg.MockClient
	hook     *test.Hook
}

type fixtureOpts struct {
	classifier    nlg.Client
	caps          []capability.Capability
	collaboration bool
	// wrapSessions lets a test put a failing layer in front of the session store.
	wrapSessions func(*session.MemoryStore) session.Store
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	m := metrics.NewTestMetrics()
	mem := store.NewMemory()
	gen := nlg.NewMockClient()

	caps := opts.caps
	if caps == nil {
		caps = capability.Defaults(gen, mem, capability.NewStaticSlots(), logger)
	}
	reg, err := capability.NewRegistry(caps...)
	require.NoError(t, err)

	var cls nlg.Client = gen
	if opts.classifier != nil {
		cls = opts.classifier
	}

	sessions := session.NewMemoryStore()
	var sessionStore session.Store = sessions
	if opts.wrapSessions != nil {
		sessionStore = opts.wrapSessions(sessions)
	}
	engine := escalation.NewEngine(escalation.DefaultRules(), mem, notify.NewLogNotifier(logger), logger, m,
		escalation.WithScheduler(escalation.NewMemoryScheduler()))

	orch := New(Deps{
		Registry:   reg,
		Router:     routing.NewRouter(reg, routing.WithCollaboration(opts.collaboration)),
		Classifier: cls,
		Crisis:     crisis.NewHandler(mem, "India", logger, m),
		Escalation: engine,
		Sessions:   sessionStore,
		Store:      mem,
		Logger:     logger,
		Metrics:    m,
	})
	return &fixture{orch: orch, store: mem, sessions: sessions, gen: gen, hook: hook}
}

func TestProcessMessage_InvalidRequest(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.orch.ProcessMessage(context.Background(), Request{Message: "hello"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProcessMessage_CrisisEscalatesAndSticks(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	resp, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "I want to kill myself"})
	require.NoError(t, err)

	assert.True(t, resp.EscalationNeeded)
	assert.Equal(t, models.StageCrisis, resp.Stage)
	assert.Equal(t, models.CapabilityBooking, resp.CapabilityID)
	assert.NotEmpty(t, resp.Helplines)
	assert.Contains(t, resp.ResponseText, "+91-9152987821")
	assert.True(t, strings.HasPrefix(resp.EscalationID, "ESC_u1_"))

	recs, err := f.orch.Escalations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.LevelCrisis, recs[0].Level)

	// a calm follow-up message in the same session still gets the crisis path
	resp, err = f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "ok thanks"})
	require.NoError(t, err)
	assert.Equal(t, models.StageCrisis, resp.Stage)
	assert.True(t, resp.EscalationNeeded)
	assert.Empty(t, resp.EscalationID)

	sess, err := f.orch.Session(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sess.CrisisDetected)
	assert.Equal(t, 2, sess.TurnCount)
}

func TestProcessMessage_CrisisKeywordsSurviveClassifierFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.gen.AnalyzeErr = &nlg.ClassificationError{Reason: "malformed json"}

	resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "some days I don't want to live"})
	require.NoError(t, err)
	assert.True(t, resp.EscalationNeeded)
	assert.Equal(t, models.StageCrisis, resp.Stage)
	assert.Contains(t, resp.DetectedTags, "crisis")
}

func TestProcessMessage_CrisisInRequestedLanguage(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "I want to end it all", Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, models.LanguageSpanish, resp.Language)
	assert.Contains(t, resp.ResponseText, language.Crisis(models.LanguageSpanish).CrisisMessage)
}

func TestProcessMessage_SimpleGreeting(t *testing.T) {
	f := newFixture(t, fixtureOpts{collaboration: true})

	resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, models.CapabilityConversation, resp.CapabilityID)
	assert.False(t, resp.CollaborationUsed)
	assert.False(t, resp.EscalationNeeded)
	assert.Equal(t, models.StageGreeting, resp.Stage)
	assert.Equal(t, language.Greeting(models.LanguageEnglish, models.StyleEmpathetic), resp.ResponseText)
}

func TestProcessMessage_NinthBenignTurnIsFollowUp(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	var resp *Response
	var err error
	for i := 0; i < 9; i++ {
		resp, err = f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s9", Message: "I went for a walk today"})
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, models.StageGreeting, resp.Stage)
		}
	}
	assert.Equal(t, models.StageFollowUp, resp.Stage)
	assert.True(t, resp.FollowUpNeeded)
}

func TestProcessMessage_ConcurrentTurnsAreNotLost(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "shared", Message: "I feel anxious"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := f.orch.Session(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, n, sess.TurnCount)
	assert.Equal(t, []string{"anxiety_management"}, sess.TechniquesUsed)
}

func TestProcessMessage_TechniquesAccumulate(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	_, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "I feel anxious before exams"})
	require.NoError(t, err)
	_, err = f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "I feel so sad and hopeless"})
	require.NoError(t, err)
	_, err = f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "still anxious"})
	require.NoError(t, err)

	sess, err := f.orch.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"anxiety_management", "behavioral_activation"}, sess.TechniquesUsed)
}

func TestProcessMessage_Collaboration(t *testing.T) {
	analysis := models.Analysis{
		EmotionalState:        models.StateStressed,
		Intensity:             models.SeverityMedium,
		DetectedTags:          []string{"anxiety", "stress", "sleep"},
		CommunicationStyle:    models.StyleEmpathetic,
		Language:              models.LanguageEnglish,
		UrgencyLevel:          models.SeverityMedium,
		Intent:                models.IntentSeekingHelp,
		RecommendedCapability: models.CapabilityCBT,
	}

	t.Run("disabled by default", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{classifier: stubClassifier{analysis: analysis}})
		resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "exams and no sleep"})
		require.NoError(t, err)
		assert.Equal(t, models.CapabilityCBT, resp.CapabilityID)
		assert.False(t, resp.CollaborationUsed)
	})

	t.Run("enabled", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{classifier: stubClassifier{analysis: analysis}, collaboration: true})
		resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", SessionID: "c1", Message: "exams and no sleep"})
		require.NoError(t, err)
		assert.Equal(t, models.CapabilityCBT, resp.CapabilityID)
		assert.True(t, resp.CollaborationUsed)
		assert.Equal(t, models.CapabilityMindfulness, resp.SecondaryCapability)

		sess, err := f.orch.Session(context.Background(), "c1")
		require.NoError(t, err)
		assert.Len(t, sess.TechniquesUsed, 2)
	})
}

func TestProcessMessage_CapabilityFailure(t *testing.T) {
	gen := nlg.NewMockClient()
	logger, _ := test.NewNullLogger()
	f := newFixture(t, fixtureOpts{caps: []capability.Capability{
		capability.NewConversationManager(gen, logger),
		brokenCapability{},
	}})

	resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "I feel anxious"})
	require.NoError(t, err)
	assert.Equal(t, constants.TechnicalDifficultyMessage, resp.ResponseText)
	assert.Contains(t, resp.ResponseText, "crisis helpline")
}

func TestProcessMessage_RoutingFailureUsesSafeText(t *testing.T) {
	gen := nlg.NewMockClient()
	logger, _ := test.NewNullLogger()
	f := newFixture(t, fixtureOpts{caps: []capability.Capability{
		capability.NewCBTTherapist(gen, logger),
	}})

	resp, err := f.orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "tell me something"})
	require.NoError(t, err)
	assert.Equal(t, constants.SafeFallbackMessage, resp.ResponseText)
	assert.Empty(t, resp.CapabilityID)
}

func TestProcessMessage_UpdatesUserHistory(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	_, err := f.orch.ProcessMessage(ctx, Request{UserID: "u7", Message: "I feel anxious", Style: "genz"})
	require.NoError(t, err)

	u, err := f.store.GetUser(ctx, "u7")
	require.NoError(t, err)
	assert.Equal(t, []string{"anxiety"}, u.History)
	assert.Equal(t, models.StyleGenZ, u.Style)
}

func TestProcessMessage_StoreDownStillAnswers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := metrics.NewTestMetrics()
	gen := nlg.NewMockClient()
	reg, err := capability.NewRegistry(capability.Defaults(gen, store.Nop{}, capability.NewStaticSlots(), logger)...)
	require.NoError(t, err)

	orch := New(Deps{
		Registry:   reg,
		Router:     routing.NewRouter(reg),
		Classifier: gen,
		Crisis:     crisis.NewHandler(store.Nop{}, "India", logger, m),
		Escalation: escalation.NewEngine(escalation.DefaultRules(), store.Nop{}, notify.NewLogNotifier(logger), logger, m),
		Sessions:   session.NewMemoryStore(),
		Store:      store.Nop{},
		Logger:     logger,
		Metrics:    m,
	})

	resp, err := orch.ProcessMessage(context.Background(), Request{UserID: "u1", Message: "I want to end it all"})
	require.NoError(t, err)
	assert.True(t, resp.EscalationNeeded)
	assert.Equal(t, constants.DefaultHelplines, resp.Helplines)
	assert.NotEmpty(t, resp.EscalationID)
}

func TestTriggerEscalation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	_, err := f.orch.TriggerEscalation(ctx, "", "urgent", "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	rec, err := f.orch.TriggerEscalation(ctx, "u1", "urgent", "missed two sessions", "")
	require.NoError(t, err)
	assert.Equal(t, models.LevelUrgent, rec.Level)
	assert.True(t, rec.ActionsTaken[constants.ActionSameDayBooking])

	bookings, err := f.orch.Bookings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)

	ok, err := f.orch.ResolveEscalation(ctx, rec.EscalationID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, f.orch.Capabilities(), 6)
	assert.Len(t, f.orch.EscalationRules(), 4)
}

// flakySessions fails the next failGets reads with a transport error.
type flakySessions struct {
	*session.MemoryStore
	mu       sync.Mutex
	failGets int
}

func (f *flakySessions) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGets = n
}

func (f *flakySessions) Get(ctx context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	if f.failGets > 0 {
		f.failGets--
		f.mu.Unlock()
		return nil, errors.New("i/o timeout")
	}
	f.mu.Unlock()
	return f.MemoryStore.Get(ctx, id)
}

func TestProcessMessage_SessionReadFailureKeepsStoredState(t *testing.T) {
	var flaky *flakySessions
	f := newFixture(t, fixtureOpts{wrapSessions: func(m *session.MemoryStore) session.Store {
		flaky = &flakySessions{MemoryStore: m}
		return flaky
	}})
	ctx := context.Background()

	_, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "I want to kill myself"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "ok thanks"})
		require.NoError(t, err)
	}

	flaky.failNext(1)
	resp, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "ok thanks"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ResponseText)

	sess, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sess.CrisisDetected)
	assert.Equal(t, 4, sess.TurnCount)
	assert.Equal(t, models.StageCrisis, sess.Stage)

	var logged bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "Failed to load session, answering without session state" {
			logged = true
		}
	}
	assert.True(t, logged)

	// once reads recover the session is still sticky and counting
	resp, err = f.orch.ProcessMessage(ctx, Request{UserID: "u1", SessionID: "s1", Message: "ok thanks"})
	require.NoError(t, err)
	assert.Equal(t, models.StageCrisis, resp.Stage)
	assert.True(t, resp.EscalationNeeded)

	sess, err = f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, sess.TurnCount)

	recs, err := f.orch.Escalations(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestProcessMessage_UrgentBookingEscalates(t *testing.T) {
	f := newFixture(t, fixtureOpts{classifier: stubClassifier{analysis: models.Analysis{
		EmotionalState:        models.StateAnxious,
		Intensity:             models.SeverityHigh,
		UrgencyLevel:          models.SeverityHigh,
		Intent:                models.IntentBookingRequest,
		DetectedTags:          []string{"appointment", "severe_anxiety"},
		RecommendedCapability: models.CapabilityBooking,
	}}})
	ctx := context.Background()

	resp, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", Message: "I need to see a counselor soon"})
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityBooking, resp.CapabilityID)
	assert.True(t, resp.EscalationNeeded)
	assert.True(t, strings.HasPrefix(resp.EscalationID, "ESC_u1_"))

	recs, err := f.orch.Escalations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.LevelUrgent, recs[0].Level)
	assert.Equal(t, resp.EscalationID, recs[0].EscalationID)

	// one booking from the capability, one from the same-day booking action
	bookings, err := f.orch.Bookings(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, bookings, 2)
}

func TestProcessMessage_ScheduledBookingDoesNotEscalate(t *testing.T) {
	f := newFixture(t, fixtureOpts{classifier: stubClassifier{analysis: models.Analysis{
		EmotionalState:        models.StateNeutral,
		UrgencyLevel:          models.SeverityLow,
		Intent:                models.IntentBookingRequest,
		DetectedTags:          []string{"appointment"},
		RecommendedCapability: models.CapabilityBooking,
	}}})
	ctx := context.Background()

	resp, err := f.orch.ProcessMessage(ctx, Request{UserID: "u1", Message: "can I book an appointment next week"})
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityBooking, resp.CapabilityID)
	assert.False(t, resp.EscalationNeeded)
	assert.Empty(t, resp.EscalationID)

	recs, _ := f.orch.Escalations(ctx, "u1")
	assert.Empty(t, recs)
}
