package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/models"
	"careroute/pkg/nlg"
)

// BookingCreator is the part of the store the booking capability writes to.
type BookingCreator interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error)
}

// SlotProvider lists open appointment slots per date. Results are advisory.
type SlotProvider interface {
	AvailableSlots(ctx context.Context, expertType string, days int) (map[string][]string, error)
}

// StaticSlots offers the same hours on each of the next weekdays.
type StaticSlots struct {
	Hours []string
	Now   func() time.Time
}

func NewStaticSlots() *StaticSlots {
	return &StaticSlots{
		Hours: []string{"10:00-11:00", "14:00-15:00", "16:00-17:00"},
		Now:   time.Now,
	}
}

func (s *StaticSlots) AvailableSlots(ctx context.Context, expertType string, days int) (map[string][]string, error) {
	out := make(map[string][]string, days)
	day := s.Now()
	for len(out) < days {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out[day.Format("2006-01-02")] = append([]string(nil), s.Hours...)
	}
	return out, nil
}

// Intervention types chosen by the booking capability.
const (
	InterventionCrisis    = "crisis"
	InterventionUrgent    = "urgent"
	InterventionReferral  = "referral"
	InterventionScheduled = "scheduled"
)

var (
	crisisTags   = []string{"crisis", "suicidal", "self_harm", "psychosis", "immediate_danger"}
	urgentTags   = []string{"severe_depression", "severe_anxiety", "panic_disorder", "bipolar", "medication_needed"}
	referralTags = []string{"medication", "psychiatric_evaluation", "specialized_therapy"}
)

func InterventionType(a models.Analysis) string {
	switch {
	case a.EmotionalState == models.StateCrisis || a.UrgencyLevel == models.SeverityCrisis || a.HasTag(crisisTags...):
		return InterventionCrisis
	case a.UrgencyLevel == models.SeverityHigh || a.HasTag(urgentTags...):
		return InterventionUrgent
	case a.HasTag(referralTags...):
		return InterventionReferral
	}
	return InterventionScheduled
}

var interventionEscalation = map[string]models.EscalationLevel{
	InterventionCrisis: models.LevelCrisis,
	InterventionUrgent: models.LevelUrgent,
}

var bookingUrgency = map[string]string{
	InterventionCrisis:    "crisis",
	InterventionUrgent:    "urgent",
	InterventionScheduled: "normal",
	InterventionReferral:  "normal",
}

// BookingAgent arranges professional support and handles crisis intervention
// requests routed to it directly.
type BookingAgent struct {
	profile
	gen      nlg.Client
	bookings BookingCreator
	slots    SlotProvider
	logger   *logrus.Logger
	now      func() time.Time
}

func NewBookingAgent(gen nlg.Client, bookings BookingCreator, slots SlotProvider, logger *logrus.Logger) *BookingAgent {
	return &BookingAgent{
		profile: profile{
			id:       models.CapabilityBooking,
			tags:     []string{"appointment", "escalation", "crisis", "emergency", "professional_referral", "safety"},
			priority: 4,
		},
		gen:      gen,
		bookings: bookings,
		slots:    slots,
		logger:   logger,
		now:      time.Now,
	}
}

func (b *BookingAgent) Respond(ctx context.Context, req Request) (Response, error) {
	kind := InterventionType(req.Analysis)
	resp := Response{
		FollowUpNeeded:  true,
		Details:         map[string]string{"intervention_type": kind},
		EscalationLevel: interventionEscalation[kind],
	}

	if kind == InterventionCrisis {
		resp.Text = constants.StaticCrisisMessage
		resp.NextSteps = []string{"Contact helpline immediately", "Wait for counselor connection", "Create safety plan"}
		return resp, nil
	}

	if kind == InterventionUrgent || kind == InterventionScheduled {
		booking, err := b.bookings.CreateBooking(ctx, models.BookingRequest{
			UserID:        req.UserID,
			ExpertType:    constants.ExpertStudentCounselor,
			PreferredTime: b.now().Add(24 * time.Hour),
			UrgencyLevel:  bookingUrgency[kind],
			Notes: fmt.Sprintf("Auto-generated booking from %s intervention. Detected concerns: %s",
				kind, strings.Join(req.Analysis.DetectedTags, ", ")),
		})
		if err != nil {
			b.logger.WithError(err).WithField("user_id", req.UserID).Warn("Failed to create booking")
			resp.Details["booking_created"] = "false"
		} else {
			resp.Details["booking_created"] = "true"
			resp.Details["booking_id"] = booking.BookingID
		}
	}

	if b.slots != nil {
		if slots, err := b.slots.AvailableSlots(ctx, constants.ExpertStudentCounselor, 3); err == nil && len(slots) > 0 {
			resp.Details["available_slots"] = formatSlots(slots)
		}
	}

	switch kind {
	case InterventionUrgent:
		resp.NextSteps = []string{"Counselor will contact you within 2 hours", "Keep your phone nearby"}
	case InterventionReferral:
		resp.NextSteps = []string{"Review referral options", "Choose a specialist"}
	default:
		resp.NextSteps = []string{"Confirm appointment time", "Prepare questions for the session"}
	}

	resp.Text = compose(ctx, b.gen, b.logger, b.id, req,
		"Intervention type: "+kind+". Explain the next steps for getting professional support.",
		"I can help you connect with a counselor. A member of the support team will confirm a time with you shortly.")
	return resp, nil
}

func formatSlots(slots map[string][]string) string {
	dates := make([]string, 0, len(slots))
	for d := range slots {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, d+" "+strings.Join(slots[d], ","))
	}
	return strings.Join(parts, "; ")
}
