package capability

import (
	"context"

	"github.com/sirupsen/logrus"

	"careroute/pkg/models"
	"careroute/pkg/nlg"
)

type CBTTherapist struct {
	profile
	gen    nlg.Client
	logger *logrus.Logger
}

func NewCBTTherapist(gen nlg.Client, logger *logrus.Logger) *CBTTherapist {
	return &CBTTherapist{
		profile: profile{
			id:       models.CapabilityCBT,
			tags:     []string{"anxiety", "depression", "negative_thoughts", "behavioral_issues", "cbt", "cognitive_distortions"},
			priority: 2,
		},
		gen:    gen,
		logger: logger,
	}
}

var cbtHomework = map[string]string{
	"anxiety_management":    "Practice the 4-7-8 breathing technique twice daily and record anxiety levels before/after",
	"behavioral_activation": "Schedule one pleasant activity for tomorrow and rate your mood before/after",
	"thought_challenging":   "Complete a thought record when you notice negative thoughts, identifying evidence for/against",
	"panic_management":      "Practice grounding techniques daily and create a panic attack action plan",
	"behavior_modification": "Track target behavior for 3 days and identify triggers/patterns",
	"general_cbt":           "Keep a daily mood and thought diary, noting connections between thoughts and feelings",
}

// CBTFocus picks the technique for the detected concerns. The result doubles
// as the technique identifier recorded on the session.
func CBTFocus(a models.Analysis) string {
	switch {
	case a.HasTag("anxiety") || a.EmotionalState == models.StateAnxious:
		return "anxiety_management"
	case a.HasTag("depression") || a.EmotionalState == models.StateDepressed:
		return "behavioral_activation"
	case a.HasTag("negative_thoughts"):
		return "thought_challenging"
	case a.HasTag("panic"):
		return "panic_management"
	case a.HasTag("behavioral_issues"):
		return "behavior_modification"
	}
	return "general_cbt"
}

func (c *CBTTherapist) Respond(ctx context.Context, req Request) (Response, error) {
	focus := CBTFocus(req.Analysis)
	homework := cbtHomework[focus]

	text := compose(ctx, c.gen, c.logger, c.id, req,
		"Technique: "+focus+". Close with this homework: "+homework,
		"Let's work through this together with a small CBT exercise. For now: "+homework+".")

	return Response{
		Text:                  text,
		Techniques:            []string{focus},
		NextSteps:             []string{"Homework: " + homework},
		FollowUpNeeded:        true,
		RequestsCollaboration: req.Analysis.HasTag("sleep", "stress"),
		SuggestedCapability:   models.CapabilityMindfulness,
		Details: map[string]string{
			"cbt_technique":     focus,
			"homework_assigned": homework,
		},
	}, nil
}
