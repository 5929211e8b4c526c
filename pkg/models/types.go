package models

import (
	"sort"
	"strings"
	"time"
)

// Analysis is the classifier's reading of a single message. Treat as immutable.
type Analysis struct {
	EmotionalState        EmotionalState `json:"emotional_state"`
	Intensity             Severity       `json:"intensity"`
	DetectedTags          []string       `json:"detected_tags"`
	CommunicationStyle    Style          `json:"communication_style"`
	Language              Language       `json:"language"`
	CrisisIndicators      bool           `json:"crisis_indicators"`
	UrgencyLevel          Severity       `json:"urgency_level"`
	Intent                Intent         `json:"intent"`
	RecommendedCapability CapabilityID   `json:"recommended_capability,omitempty"`
}

// IsCrisis reports whether the analysis alone demands the crisis path.
func (a Analysis) IsCrisis() bool {
	return a.CrisisIndicators || a.UrgencyLevel == SeverityCrisis
}

// HasTag reports whether any of the given tags was detected.
func (a Analysis) HasTag(tags ...string) bool {
	for _, t := range a.DetectedTags {
		for _, want := range tags {
			if t == want {
				return true
			}
		}
	}
	return false
}

// NormalizeTags lower-cases, trims and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UnionSorted merges b into a as a set and returns the sorted result.
func UnionSorted(a []string, b ...string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// EscalationRecord is emitted once per escalation trigger.
type EscalationRecord struct {
	EscalationID       string           `json:"escalation_id"`
	UserID             string           `json:"user_id"`
	Level              EscalationLevel  `json:"level"`
	TriggeredAt        time.Time        `json:"triggered_at"`
	ActionsTaken       map[string]bool  `json:"actions_taken"`
	NotificationsSent  map[string]bool  `json:"notifications_sent"`
	Status             EscalationStatus `json:"status"`
	ExpectedResponseBy time.Time        `json:"expected_response_by"`
	Context            string           `json:"context,omitempty"`
	Message            string           `json:"message,omitempty"`
	EmergencyFallback  bool             `json:"emergency_fallback,omitempty"`
}

type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Language  Language  `json:"language"`
	Style     Style     `json:"style"`
	History   []string  `json:"history"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxUserHistory bounds the concern history kept per user.
const MaxUserHistory = 20

// AppendHistory records concern tags, keeping the most recent MaxUserHistory entries.
func (u *User) AppendHistory(tags ...string) {
	u.History = append(u.History, tags...)
	if n := len(u.History); n > MaxUserHistory {
		u.History = append([]string(nil), u.History[n-MaxUserHistory:]...)
	}
}

type Helpline struct {
	Issue       string `json:"issue"`
	Number      string `json:"number"`
	Region      string `json:"region"`
	Description string `json:"description,omitempty"`
}

type Expert struct {
	ExpertID        string   `json:"expert_id"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Specializations []string `json:"specializations"`
	Languages       []string `json:"languages"`
	Available       bool     `json:"available"`
}

// BookingRequest asks the store to reserve time with an expert.
type BookingRequest struct {
	UserID        string    `json:"user_id"`
	ExpertType    string    `json:"expert_type"`
	PreferredTime time.Time `json:"preferred_time"`
	UrgencyLevel  string    `json:"urgency_level"`
	Notes         string    `json:"notes,omitempty"`
}

type Booking struct {
	BookingID string `json:"booking_id"`
	BookingRequest
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AssessmentResult is one scored questionnaire submission.
type AssessmentResult struct {
	ResultID        string    `json:"result_id"`
	UserID          string    `json:"user_id"`
	AssessmentType  string    `json:"assessment_type"`
	Score           int       `json:"score"`
	SeverityLevel   string    `json:"severity_level"`
	Recommendations []string  `json:"recommendations"`
	NextSteps       []string  `json:"next_steps"`
	SafetyConcern   bool      `json:"safety_concern,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// EscalationStats summarizes stored escalations for monitoring.
type EscalationStats struct {
	CountsByLevel map[EscalationLevel]int `json:"escalation_counts_by_level"`
	Recent        int                     `json:"recent_escalations_24h"`
	Active        int                     `json:"active_escalations"`
	GeneratedAt   time.Time               `json:"generated_at"`
}
