// Package classifier holds the deterministic keyword classifier used whenever
// the NLG backend cannot produce an analysis.
package classifier

import (
	"strings"

	"careroute/pkg/language"
	"careroute/pkg/models"
)

var anxietyKeywords = []string{"anxious", "worried", "panic", "nervous", "stress"}

var depressionKeywords = []string{"sad", "depressed", "hopeless", "empty", "worthless"}

// Both lists are matched as substrings of the lower-cased message.
var crisisKeywords = []string{"suicide", "kill myself", "end it all", "hurt myself"}

var crisisDetectionKeywords = []string{"suicide", "kill myself", "end it all", "don't want to live", "hurt myself"}

var bookingKeywords = []string{"appointment", "book a", "booking", "counselor", "counsellor", "therapist"}

// Keyword classifies message with fixed keyword lists. It never fails.
func Keyword(message string) models.Analysis {
	lower := strings.ToLower(message)

	a := models.Analysis{
		EmotionalState:     models.StateNeutral,
		Intensity:          models.SeverityMedium,
		CommunicationStyle: models.StyleEmpathetic,
		Language:           language.Detect(message),
		UrgencyLevel:       models.SeverityLow,
		Intent:             models.IntentGeneralInquiry,
		DetectedTags:       []string{},
	}

	if containsAny(lower, anxietyKeywords) {
		a.DetectedTags = append(a.DetectedTags, "anxiety")
		a.EmotionalState = models.StateAnxious
		a.UrgencyLevel = models.SeverityMedium
	}
	if containsAny(lower, depressionKeywords) {
		a.DetectedTags = append(a.DetectedTags, "depression")
		a.EmotionalState = models.StateDepressed
		a.UrgencyLevel = models.SeverityMedium
	}
	if containsAny(lower, bookingKeywords) {
		a.DetectedTags = append(a.DetectedTags, "appointment")
		a.Intent = models.IntentBookingRequest
	}
	if containsAny(lower, crisisKeywords) {
		a.DetectedTags = append(a.DetectedTags, "crisis")
		a.EmotionalState = models.StateCrisis
		a.UrgencyLevel = models.SeverityCrisis
	}

	switch {
	case len(a.DetectedTags) > 0 && a.Intent != models.IntentBookingRequest:
		a.Intent = models.IntentSeekingHelp
	case language.IsSimpleGreeting(message):
		a.Intent = models.IntentGreeting
	}

	a.CrisisIndicators = a.UrgencyLevel == models.SeverityCrisis
	if a.CrisisIndicators {
		a.RecommendedCapability = models.CapabilityBooking
	} else {
		a.RecommendedCapability = models.CapabilityConversation
	}
	return a
}

// ContainsCrisisLanguage is the last-resort crisis check applied to every
// message regardless of what the classifier reported.
func ContainsCrisisLanguage(message string) bool {
	return containsAny(strings.ToLower(message), crisisDetectionKeywords)
}

// SuggestCapability maps concern tags to the specialist best suited to them.
// The general-purpose capability is returned when nothing matches.
func SuggestCapability(tags []string) models.CapabilityID {
	has := func(want ...string) bool {
		for _, t := range tags {
			for _, w := range want {
				if t == w {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("crisis", "suicidal", "self_harm"):
		return models.CapabilityBooking
	case has("severe_depression", "bipolar", "psychosis", "medication"):
		return models.CapabilityPsychiatrist
	case has("anxiety", "depression", "negative_thoughts", "panic", "phobia"):
		return models.CapabilityCBT
	case has("stress", "sleep", "focus", "lifestyle", "mindfulness"):
		return models.CapabilityMindfulness
	case has("relationships", "family", "workplace", "communication"):
		return models.CapabilityRelationship
	case has("appointment", "professional_referral"):
		return models.CapabilityBooking
	}
	return models.CapabilityConversation
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
