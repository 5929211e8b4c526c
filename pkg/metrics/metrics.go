package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LiveSessions             prometheus.Gauge
	SessionsEvicted          prometheus.Counter
	MessagesProcessed        *prometheus.CounterVec
	StageClassifications     *prometheus.CounterVec
	RoutingDecisions         *prometheus.CounterVec
	CrisisInterventions      prometheus.Counter
	ClassifierFallbacks      prometheus.Counter
	NLGCallDuration          *prometheus.HistogramVec
	EscalationsTriggered     *prometheus.CounterVec
	EscalationActions        *prometheus.CounterVec
	NotificationsSent        *prometheus.CounterVec
	EmergencyFallbacks       prometheus.Counter
	PersistenceFailures      *prometheus.CounterVec
	PendingFollowUps         prometheus.Gauge
	OverdueFollowUps         prometheus.Counter
	FollowUpLeaderChanges    prometheus.Counter
	FollowUpCheckDuration    prometheus.Histogram
	LeaderElectionDuration   prometheus.Histogram
	RedisOperationDuration   *prometheus.HistogramVec
	StreamProcessingDuration prometheus.Histogram
	StreamMessagesProcessed  *prometheus.CounterVec
	ProcessMessageDuration   prometheus.Histogram
	AssessmentsSubmitted     *prometheus.CounterVec
	BookingRequests          *prometheus.CounterVec
}

// NewMetrics registers every collector with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "careroute_live_sessions",
			Help: "Current number of sessions held by the session store",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "careroute_sessions_evicted_total",
			Help: "Total number of sessions evicted by the capacity sweeper",
		}),
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_messages_processed_total",
			Help: "Total number of processed user messages",
		}, []string{"status"}),
		StageClassifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_stage_classifications_total",
			Help: "Turns classified per conversation stage",
		}, []string{"stage"}),
		RoutingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_routing_decisions_total",
			Help: "Routing decisions per primary capability",
		}, []string{"capability", "confidence"}),
		CrisisInterventions: factory.NewCounter(prometheus.CounterOpts{
			Name: "careroute_crisis_interventions_total",
			Help: "Total number of turns handled by the crisis handler",
		}),
		ClassifierFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "careroute_classifier_fallbacks_total",
			Help: "Analyses produced by the keyword fallback classifier",
		}),
		NLGCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careroute_nlg_call_duration_seconds",
			Help:    "Time taken by NLG backend calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		EscalationsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_escalations_triggered_total",
			Help: "Total number of escalations triggered",
		}, []string{"level"}),
		EscalationActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_escalation_actions_total",
			Help: "Escalation action outcomes",
		}, []string{"action", "outcome"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_notifications_sent_total",
			Help: "Notification outcomes per channel",
		}, []string{"channel", "outcome"}),
		EmergencyFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "careroute_emergency_fallbacks_total",
			Help: "Escalations that fell back to the emergency booking path",
		}),
		PersistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_persistence_failures_total",
			Help: "Store writes that failed",
		}, []string{"operation"}),
		PendingFollowUps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "careroute_pending_followups",
			Help: "Follow-up checks that are due but not yet dispatched",
		}),
		OverdueFollowUps: factory.NewCounter(prometheus.CounterOpts{
			Name: "careroute_overdue_followups_total",
			Help: "Total number of follow-up checks dispatched after their deadline",
		}),
		FollowUpLeaderChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "careroute_followup_leader_changes_total",
			Help: "Total number of follow-up monitor leader changes",
		}),
		FollowUpCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "careroute_followup_check_duration_seconds",
			Help:    "Time taken to scan due follow-ups",
			Buckets: prometheus.DefBuckets,
		}),
		LeaderElectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "careroute_leader_election_duration_seconds",
			Help:    "Time taken for leader election operations",
			Buckets: prometheus.DefBuckets,
		}),
		RedisOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careroute_redis_operation_duration_seconds",
			Help:    "Time taken for Redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		StreamProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "careroute_stream_processing_duration_seconds",
			Help:    "Time taken to process notification stream batches",
			Buckets: prometheus.DefBuckets,
		}),
		StreamMessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_stream_messages_processed_total",
			Help: "Total number of notification stream messages processed",
		}, []string{"status"}),
		ProcessMessageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "careroute_process_message_duration_seconds",
			Help:    "End-to-end time to process one user message",
			Buckets: prometheus.DefBuckets,
		}),
		AssessmentsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_assessments_submitted_total",
			Help: "Scored assessment submissions per instrument and severity tier",
		}, []string{"assessment", "tier"}),
		BookingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careroute_booking_requests_total",
			Help: "Explicit booking requests per urgency level and outcome",
		}, []string{"urgency", "outcome"}),
	}
}

// NewTestMetrics returns metrics bound to a private registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
