package constants

import "time"

// Default session capacity values
const (
	// DefaultSessionCapacity - live sessions kept before the sweeper trims
	DefaultSessionCapacity = 100

	// DefaultSessionEvictBatch - sessions removed per sweep once over capacity
	DefaultSessionEvictBatch = 50

	// DefaultSessionSweepIntervalMS - how often the sweeper runs
	DefaultSessionSweepIntervalMS = 5000

	// DefaultSessionTTLHours - idle lifetime of a session snapshot in Redis
	DefaultSessionTTLHours = 24
)

// Default escalation timing values
const (
	DefaultLeaderElectionTTLSeconds      = 10
	DefaultLeaderElectionIntervalSeconds = 5
	DefaultFollowUpCheckIntervalMS       = 1000
	DefaultPendingRecoveryInterval       = 30 * time.Second
	DefaultPendingMinIdle                = time.Minute
)

// Redis key prefixes and names
const (
	SessionKeyPrefix         = "session:"
	SessionsTouchedKey       = "sessions:touched"
	FollowUpsKey             = "escalation_followups"
	FollowUpRecordsKey       = "escalation_followup_records"
	LeaderElectionKey        = "followup:leader"
	NotificationsStream      = "escalation_notifications"
	DefaultNotificationGroup = "notification-dispatchers"
)

// Notification channels
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelPush     = "push"
	ChannelFollowUp = "follow_up"
)

// Escalation actions
const (
	ActionImmediateHelpline     = "immediate_helpline"
	ActionCounselorNotification = "counselor_notification"
	ActionSafetyCheck           = "safety_check"
	ActionSameDayBooking        = "same_day_booking"
	ActionPriorityBooking       = "priority_booking"
	ActionStandardBooking       = "standard_booking"
)

// Expert types used by booking actions
const (
	ExpertStudentCounselor = "student_counselor"
	ExpertPsychologist     = "psychologist"
	ExpertPsychiatrist     = "psychiatrist"
)

// Safety texts that must survive every dependency failure
const (
	StaticCrisisMessage = "I'm concerned about your wellbeing. Please contact emergency services (911/112) or a crisis helpline immediately if you're in danger."

	TechnicalDifficultyMessage = "I'm here to support you, but I'm having some technical difficulties right now. Your wellbeing is important - if you're in crisis, please contact emergency services or a crisis helpline immediately. Otherwise, please try again in a moment."

	SafeFallbackMessage = "I'm here to support you. Could you tell me more about what you're experiencing right now?"

	EmergencyBookingNotes = "EMERGENCY: Escalation system failure - immediate attention required"
)

// DefaultHelplines is used whenever the helpline lookup fails or comes back empty.
var DefaultHelplines = map[string]string{
	"Suicidal Thoughts":    "+91-9152987821",
	"Mental Health Crisis": "1075",
}

// Helper functions for time conversions
func MillisecondsToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
