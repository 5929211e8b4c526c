package nlg

import (
	"fmt"
	"strings"

	"careroute/pkg/models"
)

const analysisInstruction = `You analyze messages sent to a student mental health support service.
Respond with a single JSON object and nothing else, using these keys:
emotional_state (neutral|positive|calm|curious|anxious|depressed|stressed|angry|hopeful|overwhelmed|mixed|complex|crisis),
intensity (low|medium|high|crisis), detected_tags (array of short lower_snake_case concern labels),
communication_style (formal|genz|empathetic|clinical), language (English|Hindi|Tamil|Spanish),
crisis_indicators (boolean), urgency_level (low|medium|high|crisis),
intent (greeting|general_inquiry|small_talk|acknowledgement|seeking_help|booking_request|other),
recommended_agent (conversation_manager|cbt_therapist|mindfulness_coach|booking_agent|psychiatrist|relationship_counselor).`

// AnalysisPrompt builds the user turn sent for classification.
func AnalysisPrompt(message string, history []string) string {
	var b strings.Builder
	if len(history) > 0 {
		fmt.Fprintf(&b, "Previously discussed concerns: %s\n", strings.Join(history, ", "))
	}
	fmt.Fprintf(&b, "Message: %s", message)
	return b.String()
}

var capabilityInstructions = map[models.CapabilityID]string{
	models.CapabilityConversation: "You are the first point of contact. Listen, reflect feelings back and gently find out what the student needs.",
	models.CapabilityCBT:          "You guide the student through a short cognitive behavioural exercise.",
	models.CapabilityMindfulness:  "You guide the student through a short mindfulness or grounding practice.",
	models.CapabilityBooking:      "You help the student arrange time with a professional and explain what happens next.",
	models.CapabilityPsychiatrist: "You explain when a psychiatric consultation helps and prepare the student for a referral. Never give medication advice.",
	models.CapabilityRelationship: "You help the student reflect on a relationship, family or workplace difficulty.",
}

// SystemPrompt combines the capability brief with language and style.
func SystemPrompt(id models.CapabilityID, lang models.Language, style models.Style, extra string) string {
	var b strings.Builder
	b.WriteString(capabilityInstructions[id])
	fmt.Fprintf(&b, "\nReply in %s using a %s tone. Keep it under 120 words.", lang, style)
	if extra != "" {
		b.WriteString("\n")
		b.WriteString(extra)
	}
	return b.String()
}
