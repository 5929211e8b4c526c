package nlg

import (
	"encoding/json"
	"strings"

	"careroute/pkg/models"
)

// rawAnalysis mirrors the JSON object the model is asked to emit.
type rawAnalysis struct {
	EmotionalState        string   `json:"emotional_state"`
	Intensity             string   `json:"intensity"`
	DetectedTags          []string `json:"detected_tags"`
	CommunicationStyle    string   `json:"communication_style"`
	Language              string   `json:"language"`
	CrisisIndicators      bool     `json:"crisis_indicators"`
	UrgencyLevel          string   `json:"urgency_level"`
	Intent                string   `json:"intent"`
	RecommendedCapability string   `json:"recommended_agent"`
}

// ParseAnalysis decodes model output into a normalized Analysis. Markdown code
// fences around the JSON are tolerated.
func ParseAnalysis(text string) (models.Analysis, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	if body == "" {
		return models.Analysis{}, &ClassificationError{Reason: "empty response"}
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return models.Analysis{}, &ClassificationError{Reason: "malformed json", Raw: text, Err: err}
	}
	if raw.EmotionalState == "" && raw.UrgencyLevel == "" {
		return models.Analysis{}, &ClassificationError{Reason: "missing required fields", Raw: text}
	}

	a := models.Analysis{
		EmotionalState:     models.ParseEmotionalState(raw.EmotionalState),
		Intensity:          models.ParseIntensity(raw.Intensity),
		DetectedTags:       models.NormalizeTags(raw.DetectedTags),
		CommunicationStyle: models.ParseStyle(raw.CommunicationStyle),
		Language:           models.ParseLanguage(raw.Language),
		CrisisIndicators:   raw.CrisisIndicators,
		UrgencyLevel:       models.ParseUrgency(raw.UrgencyLevel),
		Intent:             models.ParseIntent(raw.Intent),
	}
	if id, ok := models.ParseCapabilityID(raw.RecommendedCapability); ok {
		a.RecommendedCapability = id
	}
	if a.UrgencyLevel == models.SeverityCrisis || a.EmotionalState == models.StateCrisis {
		a.CrisisIndicators = true
	}
	return a, nil
}
