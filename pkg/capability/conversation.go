package capability

import (
	"context"

	"github.com/sirupsen/logrus"

	"careroute/pkg/classifier"
	"careroute/pkg/constants"
	"careroute/pkg/language"
	"careroute/pkg/models"
	"careroute/pkg/nlg"
)

// ConversationManager is the general-purpose, first-line capability.
type ConversationManager struct {
	profile
	gen    nlg.Client
	logger *logrus.Logger
}

func NewConversationManager(gen nlg.Client, logger *logrus.Logger) *ConversationManager {
	return &ConversationManager{
		profile: profile{
			id:       models.CapabilityConversation,
			tags:     []string{"general", "routing", "multilingual", "adaptation", "initial_contact"},
			priority: 1,
		},
		gen:    gen,
		logger: logger,
	}
}

func (c *ConversationManager) Respond(ctx context.Context, req Request) (Response, error) {
	suggested := classifier.SuggestCapability(req.Analysis.DetectedTags)

	resp := Response{
		SuggestedCapability:   suggested,
		RequestsCollaboration: suggested != models.CapabilityConversation,
		Details:               map[string]string{"suggested_capability": string(suggested)},
	}

	if language.IsSimpleGreeting(req.Message) {
		resp.Text = language.Greeting(req.Language, req.Style)
		return resp, nil
	}

	resp.Text = compose(ctx, c.gen, c.logger, c.id, req, "", constants.SafeFallbackMessage)
	if suggested != models.CapabilityConversation {
		resp.NextSteps = []string{"Explore support from the " + displayName(suggested)}
	}
	return resp, nil
}

func displayName(id models.CapabilityID) string {
	switch id {
	case models.CapabilityCBT:
		return "CBT therapist"
	case models.CapabilityMindfulness:
		return "mindfulness coach"
	case models.CapabilityBooking:
		return "booking team"
	case models.CapabilityPsychiatrist:
		return "psychiatrist"
	case models.CapabilityRelationship:
		return "relationship counselor"
	}
	return "conversation manager"
}
