package models

import "strings"

// EmotionalState is the classifier's reading of how the user feels.
type EmotionalState string

const (
	StateNeutral     EmotionalState = "neutral"
	StatePositive    EmotionalState = "positive"
	StateCalm        EmotionalState = "calm"
	StateCurious     EmotionalState = "curious"
	StateAnxious     EmotionalState = "anxious"
	StateDepressed   EmotionalState = "depressed"
	StateStressed    EmotionalState = "stressed"
	StateAngry       EmotionalState = "angry"
	StateHopeful     EmotionalState = "hopeful"
	StateOverwhelmed EmotionalState = "overwhelmed"
	StateMixed       EmotionalState = "mixed"
	StateComplex     EmotionalState = "complex"
	StateCrisis      EmotionalState = "crisis"
)

var emotionalStates = map[string]EmotionalState{}

func init() {
	for _, s := range []EmotionalState{
		StateNeutral, StatePositive, StateCalm, StateCurious, StateAnxious, StateDepressed,
		StateStressed, StateAngry, StateHopeful, StateOverwhelmed, StateMixed, StateComplex, StateCrisis,
	} {
		emotionalStates[string(s)] = s
	}
}

// ParseEmotionalState normalizes free-form classifier output. Unknown values map to neutral.
func ParseEmotionalState(s string) EmotionalState {
	if v, ok := emotionalStates[normalize(s)]; ok {
		return v
	}
	return StateNeutral
}

// Severity is shared by intensity and urgency.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	SeverityCrisis Severity = "crisis"
)

func parseSeverity(s string, fallback Severity) Severity {
	switch v := Severity(normalize(s)); v {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCrisis:
		return v
	}
	return fallback
}

// ParseIntensity maps unknown values to medium.
func ParseIntensity(s string) Severity { return parseSeverity(s, SeverityMedium) }

// ParseUrgency maps unknown values to low.
func ParseUrgency(s string) Severity { return parseSeverity(s, SeverityLow) }

// Intent is what the user is trying to do with the message.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentGeneralInquiry  Intent = "general_inquiry"
	IntentSmallTalk       Intent = "small_talk"
	IntentAcknowledgement Intent = "acknowledgement"
	IntentSeekingHelp     Intent = "seeking_help"
	IntentBookingRequest  Intent = "booking_request"
	IntentOther           Intent = "other"
)

func ParseIntent(s string) Intent {
	switch v := Intent(normalize(s)); v {
	case IntentGreeting, IntentGeneralInquiry, IntentSmallTalk, IntentAcknowledgement,
		IntentSeekingHelp, IntentBookingRequest:
		return v
	}
	return IntentOther
}

// Style is the register the user prefers to be addressed in.
type Style string

const (
	StyleFormal     Style = "formal"
	StyleGenZ       Style = "genz"
	StyleEmpathetic Style = "empathetic"
	StyleClinical   Style = "clinical"
)

func ParseStyle(s string) Style {
	switch v := Style(normalize(s)); v {
	case StyleFormal, StyleGenZ, StyleEmpathetic, StyleClinical:
		return v
	}
	return StyleEmpathetic
}

type Language string

const (
	LanguageEnglish Language = "English"
	LanguageHindi   Language = "Hindi"
	LanguageTamil   Language = "Tamil"
	LanguageSpanish Language = "Spanish"
)

// ParseLanguage accepts names and ISO codes. Unknown values map to English.
func ParseLanguage(s string) Language {
	switch normalize(s) {
	case "hindi", "hi":
		return LanguageHindi
	case "tamil", "ta":
		return LanguageTamil
	case "spanish", "es", "español", "espanol":
		return LanguageSpanish
	}
	return LanguageEnglish
}

// Stage is the conversational phase of a turn.
type Stage string

const (
	StageGreeting     Stage = "greeting"
	StageAssessment   Stage = "assessment"
	StageIntervention Stage = "intervention"
	StageFollowUp     Stage = "follow_up"
	StageGeneral      Stage = "general"
	StageCrisis       Stage = "crisis"
)

// CapabilityID is the closed set of response capabilities.
type CapabilityID string

const (
	CapabilityConversation CapabilityID = "conversation_manager"
	CapabilityCBT          CapabilityID = "cbt_therapist"
	CapabilityMindfulness  CapabilityID = "mindfulness_coach"
	CapabilityBooking      CapabilityID = "booking_agent"
	CapabilityPsychiatrist CapabilityID = "psychiatrist"
	CapabilityRelationship CapabilityID = "relationship_counselor"
)

// AllCapabilityIDs lists every capability in registration order.
var AllCapabilityIDs = []CapabilityID{
	CapabilityConversation,
	CapabilityCBT,
	CapabilityMindfulness,
	CapabilityBooking,
	CapabilityPsychiatrist,
	CapabilityRelationship,
}

// ParseCapabilityID returns false for anything outside the closed set.
func ParseCapabilityID(s string) (CapabilityID, bool) {
	n := normalize(s)
	switch n {
	case "crisis", "booking", "crisis_agent":
		return CapabilityBooking, true
	case "cbt":
		return CapabilityCBT, true
	case "mindfulness":
		return CapabilityMindfulness, true
	case "relationship":
		return CapabilityRelationship, true
	case "general", "conversation":
		return CapabilityConversation, true
	}
	for _, id := range AllCapabilityIDs {
		if string(id) == n {
			return id, true
		}
	}
	return "", false
}

// EscalationLevel is the severity driving escalation rules.
type EscalationLevel string

const (
	LevelCrisis EscalationLevel = "crisis"
	LevelUrgent EscalationLevel = "urgent"
	LevelHigh   EscalationLevel = "high"
	LevelNormal EscalationLevel = "normal"
)

// ParseEscalationLevel never rejects: anything unrecognized is normal.
func ParseEscalationLevel(s string) EscalationLevel {
	switch v := EscalationLevel(normalize(s)); v {
	case LevelCrisis, LevelUrgent, LevelHigh, LevelNormal:
		return v
	}
	return LevelNormal
}

type EscalationStatus string

const (
	StatusActive   EscalationStatus = "active"
	StatusResolved EscalationStatus = "resolved"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
