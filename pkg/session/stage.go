package session

import "careroute/pkg/models"

var assessmentStates = map[models.EmotionalState]bool{
	models.StateAnxious:   true,
	models.StateDepressed: true,
	models.StateStressed:  true,
}

// ClassifyStage is a pure function of the turn signals. The checks run in a
// fixed order and the first match wins.
func ClassifyStage(turnCount int, state models.EmotionalState, urgency models.Severity, crisisIndicators bool) models.Stage {
	switch {
	case urgency == models.SeverityCrisis || crisisIndicators:
		return models.StageCrisis
	case turnCount <= 1:
		return models.StageGreeting
	case urgency == models.SeverityHigh:
		return models.StageIntervention
	case turnCount <= 3 && assessmentStates[state]:
		return models.StageAssessment
	case turnCount <= 8 && urgency == models.SeverityMedium:
		return models.StageIntervention
	case turnCount > 8:
		return models.StageFollowUp
	}
	return models.StageGeneral
}

// NextSteps returns the stage-specific suggestions shown with a response.
func NextSteps(stage models.Stage, a models.Analysis) []string {
	switch stage {
	case models.StageGreeting:
		return []string{"Share what's on your mind", "Take an assessment", "Learn coping techniques"}
	case models.StageAssessment:
		var steps []string
		if a.HasTag("anxiety") {
			steps = append(steps, "Suggested assessment: GAD-7 (anxiety)")
		}
		if a.HasTag("depression") {
			steps = append(steps, "Suggested assessment: PHQ-9 (depression)")
		}
		if a.HasTag("stress") {
			steps = append(steps, "Suggested assessment: Perceived Stress Scale")
		}
		return append(steps, "Complete suggested assessment", "Share more details", "Try coping technique")
	case models.StageIntervention:
		return []string{"Practice suggested technique", "Report back on progress", "Try additional strategies"}
	case models.StageFollowUp:
		return []string{"Review progress", "Adjust techniques", "Consider professional support"}
	case models.StageCrisis:
		return []string{"Contact helpline immediately", "Wait for counselor connection", "Create safety plan"}
	}
	return nil
}
