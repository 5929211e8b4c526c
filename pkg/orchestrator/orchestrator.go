// Package orchestrator runs a conversation turn end to end: analysis, crisis
// check, routing, capability response, session update and escalation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"careroute/pkg/assessment"
	"careroute/pkg/capability"
	"careroute/pkg/classifier"
	"careroute/pkg/constants"
	"careroute/pkg/crisis"
	"careroute/pkg/escalation"
	"careroute/pkg/language"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
	"careroute/pkg/nlg"
	"careroute/pkg/routing"
	"careroute/pkg/session"
	"careroute/pkg/store"
)

var (
	// ErrInvalidRequest is returned for requests missing a user or a message.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoEscalation is returned by escalation operations when no engine is configured.
	ErrNoEscalation = errors.New("escalation engine not configured")
)

type Request struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Language  string `json:"language,omitempty"`
	Style     string `json:"style,omitempty"`
}

type Response struct {
	SessionID           string              `json:"session_id"`
	ResponseText        string              `json:"response"`
	CapabilityID        models.CapabilityID `json:"capability_id,omitempty"`
	DetectedTags        []string            `json:"detected_tags"`
	EscalationNeeded    bool                `json:"escalation_needed"`
	Stage               models.Stage        `json:"stage"`
	FollowUpNeeded      bool                `json:"follow_up_needed"`
	NextSteps           []string            `json:"next_steps"`
	CollaborationUsed   bool                `json:"collaboration_used"`
	SecondaryCapability models.CapabilityID `json:"secondary_capability,omitempty"`
	Language            models.Language     `json:"language"`
	Helplines           map[string]string   `json:"helplines,omitempty"`
	EscalationID        string              `json:"escalation_id,omitempty"`
}

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	Registry   *capability.Registry
	Router     *routing.Router
	Classifier nlg.Client
	Crisis     *crisis.Handler
	Escalation *escalation.Engine
	// Assessments defaults to a service over Store.
	Assessments *assessment.Service
	Sessions    session.Store
	Locker     *session.Locker
	Store      store.Store
	Logger     *logrus.Logger
	Metrics    *metrics.Metrics
	// NLGTimeout bounds the classifier call. Zero means no extra bound.
	NLGTimeout time.Duration
	Now        func() time.Time
}

type Orchestrator struct {
	registry   *capability.Registry
	router     *routing.Router
	classifier nlg.Client
	crisis     *crisis.Handler
	engine     *escalation.Engine
	assess     *assessment.Service
	sessions   session.Store
	locker     *session.Locker
	store      store.Store
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	nlgTimeout time.Duration
	now        func() time.Time
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		registry:   d.Registry,
		router:     d.Router,
		classifier: d.Classifier,
		crisis:     d.Crisis,
		engine:     d.Escalation,
		assess:     d.Assessments,
		sessions:   d.Sessions,
		locker:     d.Locker,
		store:      d.Store,
		logger:     d.Logger,
		metrics:    d.Metrics,
		nlgTimeout: d.NLGTimeout,
		now:        d.Now,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.locker == nil {
		o.locker = session.NewLocker()
	}
	if o.store == nil {
		o.store = store.Nop{}
	}
	if o.assess == nil {
		o.assess = assessment.NewService(o.store, o.logger, o.metrics)
	}
	return o
}

// turn is the state captured while the session lock is held.
type turn struct {
	snapshot    *session.Session
	stage       models.Stage
	decision    routing.Decision
	routeErr    error
	newlyCrisis bool
}

// ProcessMessage handles one user message. Only invalid input produces an
// error; every dependency failure degrades to a safe response.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		o.metrics.ProcessMessageDuration.Observe(time.Since(start).Seconds())
	}()

	message := strings.TrimSpace(req.Message)
	if req.UserID == "" || message == "" {
		o.metrics.MessagesProcessed.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: user_id and message are required", ErrInvalidRequest)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// keeps the sweeper away from this session for the whole turn
	unpin := o.locker.Pin(sessionID)
	defer unpin()

	lang := models.ParseLanguage(req.Language)
	if req.Language == "" {
		lang = language.Detect(message)
	}

	user, knownUser := o.loadUser(ctx, req.UserID)
	style := models.ParseStyle(req.Style)
	if req.Style == "" && knownUser {
		style = user.Style
	}

	analysis := o.analyze(ctx, message, user.History)
	analysis.Language = lang

	t := o.beginTurn(ctx, sessionID, req.UserID, lang, analysis)

	log := o.logger.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"session_id": sessionID,
		"stage":      t.stage,
	})
	o.metrics.StageClassifications.WithLabelValues(string(t.stage)).Inc()

	status := "success"
	var resp *Response
	switch {
	case t.decision.Crisis:
		resp = o.handleCrisis(ctx, req.UserID, message, lang, analysis, t)
	case t.routeErr != nil:
		log.WithError(t.routeErr).Error("Routing failed, using safe fallback")
		status = "routing_fallback"
		resp = &Response{
			ResponseText: constants.SafeFallbackMessage,
			NextSteps:    session.NextSteps(t.stage, analysis),
		}
	default:
		var degraded bool
		resp, degraded = o.respond(ctx, req.UserID, message, lang, style, analysis, t, log)
		if degraded {
			status = "capability_error"
		}
	}

	resp.SessionID = sessionID
	resp.Stage = t.stage
	resp.Language = lang
	resp.DetectedTags = append([]string{}, analysis.DetectedTags...)
	if t.stage == models.StageFollowUp {
		resp.FollowUpNeeded = true
	}

	o.saveUser(ctx, user, knownUser, req.UserID, lang, style, analysis.DetectedTags)

	o.metrics.MessagesProcessed.WithLabelValues(status).Inc()
	log.WithFields(logrus.Fields{
		"capability":    resp.CapabilityID,
		"escalation":    resp.EscalationNeeded,
		"collaboration": resp.CollaborationUsed,
	}).Info("Message processed")
	return resp, nil
}

func (o *Orchestrator) analyze(ctx context.Context, message string, history []string) models.Analysis {
	a, err := o.classify(ctx, message, history)
	if err != nil {
		o.metrics.ClassifierFallbacks.Inc()
		o.logger.WithError(err).Warn("Classifier failed, using keyword fallback")
		a = classifier.Keyword(message)
	}

	a.DetectedTags = models.NormalizeTags(a.DetectedTags)
	if a.RecommendedCapability != "" && !o.registry.Has(a.RecommendedCapability) {
		a.RecommendedCapability = ""
	}

	if !a.IsCrisis() && classifier.ContainsCrisisLanguage(message) {
		o.logger.Warn("Crisis language detected that the classifier missed")
		a.CrisisIndicators = true
		a.UrgencyLevel = models.SeverityCrisis
		a.EmotionalState = models.StateCrisis
		a.DetectedTags = models.NormalizeTags(append(a.DetectedTags, "crisis"))
	}
	return a
}

func (o *Orchestrator) classify(ctx context.Context, message string, history []string) (a models.Analysis, err error) {
	if o.classifier == nil {
		return models.Analysis{}, &nlg.ClassificationError{Reason: "no classifier configured"}
	}
	if o.nlgTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.nlgTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &nlg.ClassificationError{Reason: fmt.Sprintf("classifier panicked: %v", r)}
		}
	}()
	return o.classifier.Analyze(ctx, message, history)
}

// beginTurn is the first locked section: count the turn, classify the stage,
// route and persist. No remote calls are made while the lock is held.
func (o *Orchestrator) beginTurn(ctx context.Context, sessionID, userID string, lang models.Language, a models.Analysis) turn {
	unlock := o.locker.Lock(sessionID)
	defer unlock()

	now := o.now()
	persist := true
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			// the stored session may still exist; answer from a scratch copy
			// and leave it untouched so crisis state and turn count survive
			persist = false
			o.metrics.PersistenceFailures.WithLabelValues("load_session").Inc()
			o.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to load session, answering without session state")
		}
		sess = session.New(sessionID, userID, lang, now)
	}
	sess.Language = lang

	wasCrisis := sess.CrisisDetected
	stage := sess.BeginTurn(a, now)

	decision, routeErr := o.router.Route(a, routing.SessionView{CrisisDetected: sess.CrisisDetected})
	if routeErr == nil {
		o.metrics.RoutingDecisions.WithLabelValues(string(decision.Primary), string(decision.Confidence)).Inc()
	}
	if decision.Crisis {
		sess.MarkCrisis()
		stage = sess.Stage
	}

	if persist {
		o.putSession(ctx, sess)
	}

	return turn{
		snapshot:    sess.Clone(),
		stage:       stage,
		decision:    decision,
		routeErr:    routeErr,
		newlyCrisis: decision.Crisis && (!wasCrisis || a.IsCrisis()),
	}
}

func (o *Orchestrator) handleCrisis(ctx context.Context, userID, message string, lang models.Language, a models.Analysis, t turn) *Response {
	cr := o.crisis.Handle(ctx, userID, lang)

	resp := &Response{
		ResponseText:     cr.Text,
		CapabilityID:     t.decision.Primary,
		EscalationNeeded: true,
		FollowUpNeeded:   true,
		NextSteps:        cr.NextSteps,
		Helplines:        cr.Helplines,
	}

	if t.newlyCrisis && o.engine != nil {
		rec := o.engine.Trigger(ctx, escalation.Request{
			UserID:  userID,
			Level:   string(models.LevelCrisis),
			Context: "Crisis detected in conversation: " + strings.Join(a.DetectedTags, ", "),
			Message: message,
		})
		resp.EscalationID = rec.EscalationID
	}
	return resp
}

func (o *Orchestrator) respond(ctx context.Context, userID, message string, lang models.Language, style models.Style, a models.Analysis, t turn, log *logrus.Entry) (*Response, bool) {
	capReq := capability.Request{
		UserID:         userID,
		SessionID:      t.snapshot.SessionID,
		Message:        message,
		Analysis:       a,
		Stage:          t.stage,
		TurnCount:      t.snapshot.TurnCount,
		TechniquesUsed: t.snapshot.TechniquesUsed,
		Language:       lang,
		Style:          style,
	}

	primary := t.decision.Primary
	out, err := o.invoke(ctx, primary, capReq)
	if err != nil {
		log.WithError(err).WithField("capability", primary).Error("Capability failed")
		return &Response{
			ResponseText: constants.TechnicalDifficultyMessage,
			CapabilityID: primary,
			NextSteps:    session.NextSteps(t.stage, a),
		}, true
	}

	resp := &Response{
		ResponseText:   out.Text,
		CapabilityID:   primary,
		FollowUpNeeded: out.FollowUpNeeded,
		NextSteps:      session.NextSteps(t.stage, a),
	}
	if len(resp.NextSteps) == 0 {
		resp.NextSteps = out.NextSteps
	}
	techniques := out.Techniques
	escLevel, escFrom := out.EscalationLevel, primary

	secondary, hasSecondary := t.decision.Secondary, t.decision.HasSecondary
	if !hasSecondary && !t.decision.Simple && out.RequestsCollaboration {
		secondary, hasSecondary = o.router.Secondary(a, primary)
	}
	if hasSecondary {
		extra, err := o.invoke(ctx, secondary, capReq)
		if err != nil {
			log.WithError(err).WithField("capability", secondary).Warn("Secondary capability failed, answering with primary only")
		} else {
			resp.ResponseText = out.Text + "\n\n" + extra.Text
			resp.CollaborationUsed = true
			resp.SecondaryCapability = secondary
			resp.FollowUpNeeded = resp.FollowUpNeeded || extra.FollowUpNeeded
			resp.NextSteps = appendUnique(resp.NextSteps, extra.NextSteps...)
			techniques = append(techniques, extra.Techniques...)
			if escLevel == "" && extra.EscalationLevel != "" {
				escLevel, escFrom = extra.EscalationLevel, secondary
			}
		}
	}

	if escLevel != "" && o.engine != nil {
		rec := o.engine.Trigger(ctx, escalation.Request{
			UserID:  userID,
			Level:   string(escLevel),
			Context: fmt.Sprintf("Escalation requested by %s: %s", escFrom, strings.Join(a.DetectedTags, ", ")),
			Message: message,
		})
		resp.EscalationNeeded = true
		resp.EscalationID = rec.EscalationID
	}

	if len(techniques) > 0 {
		o.recordTechniques(ctx, t.snapshot.SessionID, techniques)
	}
	return resp, false
}

func (o *Orchestrator) invoke(ctx context.Context, id models.CapabilityID, req capability.Request) (resp capability.Response, err error) {
	c, ok := o.registry.Get(id)
	if !ok {
		return capability.Response{}, fmt.Errorf("capability %s not registered", id)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %s panicked: %v", id, r)
		}
	}()
	return c.Respond(ctx, req)
}

// recordTechniques is the second locked section. It reloads the session so
// that concurrent turns are not overwritten.
func (o *Orchestrator) recordTechniques(ctx context.Context, sessionID string, techniques []string) {
	unlock := o.locker.Lock(sessionID)
	defer unlock()

	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		o.logger.WithError(err).WithField("session_id", sessionID).Warn("Session gone before techniques could be recorded")
		return
	}
	sess.RecordTechniques(techniques...)
	sess.UpdatedAt = o.now()
	o.putSession(ctx, sess)
}

func (o *Orchestrator) putSession(ctx context.Context, sess *session.Session) {
	if err := o.sessions.Put(ctx, sess); err != nil {
		o.metrics.PersistenceFailures.WithLabelValues("save_session").Inc()
		o.logger.WithError(err).WithField("session_id", sess.SessionID).Error("Failed to save session")
	}
}

func (o *Orchestrator) loadUser(ctx context.Context, userID string) (models.User, bool) {
	u, err := o.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.logger.WithError(err).WithField("user_id", userID).Debug("User lookup failed")
		}
		return models.User{UserID: userID}, false
	}
	return u, true
}

func (o *Orchestrator) saveUser(ctx context.Context, u models.User, known bool, userID string, lang models.Language, style models.Style, tags []string) {
	if !known {
		u = models.User{UserID: userID, CreatedAt: o.now()}
	}
	u.Language = lang
	u.Style = style
	u.AppendHistory(tags...)
	if err := o.store.PutUser(ctx, u); err != nil {
		o.metrics.PersistenceFailures.WithLabelValues("save_user").Inc()
		o.logger.WithError(err).WithField("user_id", userID).Debug("Failed to update user history")
	}
}

// TriggerEscalation runs the escalation protocol outside of a conversation turn.
func (o *Orchestrator) TriggerEscalation(ctx context.Context, userID, level, escContext, message string) (*models.EscalationRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if o.engine == nil {
		return nil, ErrNoEscalation
	}
	return o.engine.Trigger(ctx, escalation.Request{
		UserID:  userID,
		Level:   level,
		Context: escContext,
		Message: message,
	}), nil
}

// ResolveEscalation clears the pending follow-up of an escalation.
func (o *Orchestrator) ResolveEscalation(ctx context.Context, escalationID string) (bool, error) {
	if o.engine == nil {
		return false, ErrNoEscalation
	}
	return o.engine.Resolve(ctx, escalationID)
}

func (o *Orchestrator) Session(ctx context.Context, id string) (*session.Session, error) {
	return o.sessions.Get(ctx, id)
}

func (o *Orchestrator) Escalations(ctx context.Context, userID string) ([]models.EscalationRecord, error) {
	return o.store.ListEscalations(ctx, userID)
}

func (o *Orchestrator) Bookings(ctx context.Context, userID string) ([]models.Booking, error) {
	return o.store.ListBookings(ctx, userID)
}

func (o *Orchestrator) Capabilities() []capability.Info {
	return o.registry.Describe()
}

func (o *Orchestrator) EscalationRules() []escalation.RuleInfo {
	if o.engine == nil {
		return nil
	}
	return o.engine.Rules().Describe()
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}
