// Package routing picks the capability that answers a message.
package routing

import (
	"errors"

	"careroute/pkg/capability"
	"careroute/pkg/models"
)

// ErrRoutingFailed means no usable capability could be selected. Callers fall
// back to a canned safe response.
var ErrRoutingFailed = errors.New("routing failed")

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type Decision struct {
	Primary      models.CapabilityID
	Secondary    models.CapabilityID
	HasSecondary bool
	Confidence   Confidence
	Crisis       bool
	Simple       bool
}

// SessionView is what the router needs to know about the session.
type SessionView struct {
	CrisisDetected bool
}

type Router struct {
	registry      *capability.Registry
	general       models.CapabilityID
	crisis        models.CapabilityID
	collaboration bool
}

type Option func(*Router)

// WithCollaboration enables secondary capability scoring.
func WithCollaboration(enabled bool) Option {
	return func(r *Router) { r.collaboration = enabled }
}

func NewRouter(registry *capability.Registry, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		general:  models.CapabilityConversation,
		crisis:   models.CapabilityBooking,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) CollaborationEnabled() bool { return r.collaboration }

var simpleIntents = map[models.Intent]bool{
	models.IntentGreeting:        true,
	models.IntentGeneralInquiry:  true,
	models.IntentSmallTalk:       true,
	models.IntentAcknowledgement: true,
}

var simpleStates = map[models.EmotionalState]bool{
	models.StateNeutral:  true,
	models.StatePositive: true,
	models.StateCalm:     true,
	models.StateCurious:  true,
}

var complexStates = map[models.EmotionalState]bool{
	models.StateOverwhelmed: true,
	models.StateMixed:       true,
	models.StateComplex:     true,
}

// Route selects the primary capability and, when collaboration is enabled and
// triggered, a secondary one. The crisis check always runs first.
func (r *Router) Route(a models.Analysis, s SessionView) (Decision, error) {
	if a.IsCrisis() || s.CrisisDetected {
		return Decision{Primary: r.crisis, Confidence: ConfidenceHigh, Crisis: true}, nil
	}

	if !r.registry.Has(r.general) {
		return Decision{}, ErrRoutingFailed
	}

	if r.IsSimple(a) {
		return Decision{Primary: r.general, Confidence: ConfidenceHigh, Simple: true}, nil
	}

	primary := r.general
	if a.RecommendedCapability != "" && r.registry.Has(a.RecommendedCapability) {
		primary = a.RecommendedCapability
	}

	d := Decision{Primary: primary, Confidence: confidence(a)}

	if r.collaboration && (len(a.DetectedTags) >= 3 || complexStates[a.EmotionalState]) {
		d.Secondary, d.HasSecondary = r.Secondary(a, primary)
	}
	return d, nil
}

// IsSimple reports whether a message can be answered by the general-purpose
// capability alone.
func (r *Router) IsSimple(a models.Analysis) bool {
	return simpleIntents[a.Intent] &&
		simpleStates[a.EmotionalState] &&
		a.UrgencyLevel == models.SeverityLow &&
		!a.CrisisIndicators &&
		(a.RecommendedCapability == "" || a.RecommendedCapability == r.general)
}

// Secondary scores every other capability by tag overlap. Ties go to the lowest
// priority value, then to registration order. It is also called after the
// primary explicitly asked for collaboration.
func (r *Router) Secondary(a models.Analysis, primary models.CapabilityID) (models.CapabilityID, bool) {
	if !r.collaboration {
		return "", false
	}

	var (
		best      models.CapabilityID
		bestScore int
		bestPrio  int
	)
	for _, c := range r.registry.All() {
		if c.ID() == primary {
			continue
		}
		score := r.registry.Overlap(c.ID(), a.DetectedTags)
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && c.Priority() < bestPrio) {
			best, bestScore, bestPrio = c.ID(), score, c.Priority()
		}
	}
	return best, bestScore > 0
}

func confidence(a models.Analysis) Confidence {
	switch n := len(a.DetectedTags); {
	case n == 0:
		return ConfidenceLow
	case n <= 2:
		return ConfidenceMedium
	}
	return ConfidenceHigh
}
