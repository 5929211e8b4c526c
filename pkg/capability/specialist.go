package capability

import (
	"context"

	"github.com/sirupsen/logrus"

	"careroute/pkg/models"
	"careroute/pkg/nlg"
)

// Specialist is a prompt-only capability without technique selection.
type Specialist struct {
	profile
	gen       nlg.Client
	logger    *logrus.Logger
	fallback  string
	nextSteps []string
	refer     bool
}

func NewPsychiatrist(gen nlg.Client, logger *logrus.Logger) *Specialist {
	return &Specialist{
		profile: profile{
			id:       models.CapabilityPsychiatrist,
			tags:     []string{"severe_depression", "bipolar", "psychosis", "medication", "psychiatric_evaluation"},
			priority: 3,
		},
		gen:       gen,
		logger:    logger,
		fallback:  "What you're describing sounds like something a psychiatrist can help with. I can help you arrange a consultation.",
		nextSteps: []string{"Book a psychiatric evaluation", "Note your symptoms and when they occur"},
		refer:     true,
	}
}

func NewRelationshipCounselor(gen nlg.Client, logger *logrus.Logger) *Specialist {
	return &Specialist{
		profile: profile{
			id:       models.CapabilityRelationship,
			tags:     []string{"relationships", "family", "workplace", "communication", "loneliness"},
			priority: 2,
		},
		gen:       gen,
		logger:    logger,
		fallback:  "Relationships can be really hard to navigate. Would you like to tell me more about what's been happening?",
		nextSteps: []string{"Reflect on what you need from this relationship", "Try one honest conversation this week"},
	}
}

func (s *Specialist) Respond(ctx context.Context, req Request) (Response, error) {
	resp := Response{
		Text:           compose(ctx, s.gen, s.logger, s.id, req, "", s.fallback),
		NextSteps:      s.nextSteps,
		FollowUpNeeded: s.refer,
	}
	if s.refer {
		resp.RequestsCollaboration = true
		resp.SuggestedCapability = models.CapabilityBooking
	}
	return resp, nil
}

// Defaults returns the standard capability set in registration order.
func Defaults(gen nlg.Client, bookings BookingCreator, slots SlotProvider, logger *logrus.Logger) []Capability {
	return []Capability{
		NewConversationManager(gen, logger),
		NewCBTTherapist(gen, logger),
		NewMindfulnessCoach(gen, logger),
		NewBookingAgent(gen, bookings, slots, logger),
		NewPsychiatrist(gen, logger),
		NewRelationshipCounselor(gen, logger),
	}
}
