package capability

import (
	"context"

	"github.com/sirupsen/logrus"

	"careroute/pkg/models"
	"careroute/pkg/nlg"
)

type MindfulnessCoach struct {
	profile
	gen    nlg.Client
	logger *logrus.Logger
}

func NewMindfulnessCoach(gen nlg.Client, logger *logrus.Logger) *MindfulnessCoach {
	return &MindfulnessCoach{
		profile: profile{
			id:       models.CapabilityMindfulness,
			tags:     []string{"stress", "sleep", "focus", "lifestyle", "mindfulness", "anxiety", "panic", "overwhelm"},
			priority: 2,
		},
		gen:    gen,
		logger: logger,
	}
}

// MindfulnessFocus picks the practice for the detected concerns.
func MindfulnessFocus(a models.Analysis) string {
	switch {
	case a.Intensity == models.SeverityCrisis || a.HasTag("panic"):
		return "emergency_grounding"
	case a.HasTag("sleep"):
		return "sleep_preparation"
	case a.HasTag("stress") || a.EmotionalState == models.StateStressed:
		return "stress_relief"
	case a.HasTag("anxiety") || a.EmotionalState == models.StateAnxious:
		return "anxiety_calming"
	case a.HasTag("focus"):
		return "concentration_enhancement"
	case a.HasTag("overwhelm") || a.EmotionalState == models.StateOverwhelmed:
		return "overwhelm_management"
	}
	return "general_mindfulness"
}

var practiceDuration = map[models.Severity]string{
	models.SeverityLow:    "10-15 minutes",
	models.SeverityMedium: "5-10 minutes",
	models.SeverityHigh:   "2-5 minutes",
	models.SeverityCrisis: "1-2 minutes",
}

func (m *MindfulnessCoach) Respond(ctx context.Context, req Request) (Response, error) {
	focus := MindfulnessFocus(req.Analysis)
	duration, ok := practiceDuration[req.Analysis.Intensity]
	if !ok {
		duration = "5-10 minutes"
	}

	text := compose(ctx, m.gen, m.logger, m.id, req,
		"Practice: "+focus+". Keep the exercise to "+duration+".",
		"Let's take a moment together. Notice five things you can see, four you can touch, three you can hear, two you can smell and one you can taste. Breathe slowly as you go.")

	return Response{
		Text:           text,
		Techniques:     []string{focus},
		NextSteps:      []string{"Practice for " + duration + " today"},
		FollowUpNeeded: true,
		Details: map[string]string{
			"technique_taught":  focus,
			"practice_duration": duration,
		},
	}, nil
}
