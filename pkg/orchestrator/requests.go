package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/assessment"
	"careroute/pkg/constants"
	"careroute/pkg/escalation"
	"careroute/pkg/models"
)

type BookingRequest struct {
	UserID        string    `json:"user_id"`
	ExpertType    string    `json:"expert_type,omitempty"`
	PreferredTime time.Time `json:"preferred_time,omitempty"`
	UrgencyLevel  string    `json:"urgency_level,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

type BookingResponse struct {
	Booking             *models.Booking        `json:"booking,omitempty"`
	BookingCreated      bool                   `json:"booking_created"`
	UrgencyLevel        models.EscalationLevel `json:"urgency_level"`
	EscalationTriggered bool                   `json:"escalation_triggered"`
	EscalationID        string                 `json:"escalation_id,omitempty"`
}

// RequestBooking records an explicit booking request. Crisis and urgent
// requests are escalated even when the booking itself cannot be stored.
func (o *Orchestrator) RequestBooking(ctx context.Context, req BookingRequest) (*BookingResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	expertType := req.ExpertType
	if expertType == "" {
		expertType = constants.ExpertStudentCounselor
	}
	urgency := models.ParseEscalationLevel(req.UrgencyLevel)

	log := o.logger.WithFields(logrus.Fields{
		"user_id":     req.UserID,
		"expert_type": expertType,
		"urgency":     urgency,
	})

	resp := &BookingResponse{UrgencyLevel: urgency}
	booking, err := o.store.CreateBooking(ctx, models.BookingRequest{
		UserID:        req.UserID,
		ExpertType:    expertType,
		PreferredTime: req.PreferredTime,
		UrgencyLevel:  string(urgency),
		Notes:         req.Notes,
	})
	if err != nil {
		o.metrics.PersistenceFailures.WithLabelValues("create_booking").Inc()
		log.WithError(err).Error("Failed to create booking")
	} else {
		resp.Booking = &booking
		resp.BookingCreated = true
	}

	if urgency == models.LevelCrisis || urgency == models.LevelUrgent {
		if o.engine == nil {
			log.Error("Urgent booking request could not be escalated, no escalation engine")
		} else {
			rec := o.engine.Trigger(ctx, escalation.Request{
				UserID:  req.UserID,
				Level:   string(urgency),
				Context: fmt.Sprintf("Booking request for %s (%s urgency)", expertType, urgency),
				Message: "Booking request: " + req.Notes,
			})
			resp.EscalationTriggered = true
			resp.EscalationID = rec.EscalationID
		}
	}

	outcome := "created"
	if !resp.BookingCreated {
		outcome = "failed"
	}
	o.metrics.BookingRequests.WithLabelValues(string(urgency), outcome).Inc()

	if !resp.BookingCreated && !resp.EscalationTriggered {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	log.WithField("escalated", resp.EscalationTriggered).Info("Booking request handled")
	return resp, nil
}

type AssessmentResponse struct {
	models.AssessmentResult
	Saved            bool   `json:"saved"`
	EscalationNeeded bool   `json:"escalation_needed"`
	EscalationID     string `json:"escalation_id,omitempty"`
}

// SubmitAssessment scores a questionnaire and escalates answers that need a
// human to follow up.
func (o *Orchestrator) SubmitAssessment(ctx context.Context, assessmentID, userID string, responses []int) (*AssessmentResponse, error) {
	sub, err := o.assess.Submit(ctx, assessmentID, userID, responses)
	if err != nil {
		return nil, err
	}

	resp := &AssessmentResponse{AssessmentResult: *sub.Result, Saved: sub.Saved}
	if lvl := sub.Outcome.EscalationLevel; lvl != "" && o.engine != nil {
		rec := o.engine.Trigger(ctx, escalation.Request{
			UserID:  userID,
			Level:   string(lvl),
			Context: fmt.Sprintf("%s safety item answered positively (score %d, %s)", sub.Result.AssessmentType, sub.Result.Score, sub.Result.SeverityLevel),
		})
		resp.EscalationNeeded = true
		resp.EscalationID = rec.EscalationID
	}
	return resp, nil
}

func (o *Orchestrator) AssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error) {
	return o.assess.Results(ctx, userID, limit)
}

func (o *Orchestrator) Assessments() []assessment.Info {
	return assessment.Available()
}

// EscalationStats summarizes stored escalations; Recent covers the last 24 hours.
func (o *Orchestrator) EscalationStats(ctx context.Context) (models.EscalationStats, error) {
	now := o.now()
	stats, err := o.store.EscalationStats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return models.EscalationStats{}, err
	}
	stats.GeneratedAt = now
	return stats, nil
}
