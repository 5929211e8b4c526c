package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/models"
)

// Action performs one required step of an escalation. It reports whether the
// step succeeded; an error is logged and treated as false.
type Action func(ctx context.Context, e *Engine, rec *models.EscalationRecord) (bool, error)

var counselorTags = []string{"general", "escalation", "crisis"}

func defaultActions() map[string]Action {
	return map[string]Action{
		constants.ActionImmediateHelpline:     immediateHelpline,
		constants.ActionCounselorNotification: counselorNotification,
		constants.ActionSafetyCheck:           safetyCheck,
		constants.ActionSameDayBooking:        booking(constants.ExpertStudentCounselor, "urgent", 0),
		constants.ActionPriorityBooking:       booking(constants.ExpertPsychologist, "high", 24*time.Hour),
		constants.ActionStandardBooking:       booking(constants.ExpertStudentCounselor, "normal", 72*time.Hour),
	}
}

func immediateHelpline(ctx context.Context, e *Engine, rec *models.EscalationRecord) (bool, error) {
	helplines, err := e.store.GetHelplines(ctx, e.region)
	if err != nil {
		return false, fmt.Errorf("helpline lookup: %w", err)
	}
	count := len(helplines)
	if count == 0 {
		count = len(constants.DefaultHelplines)
	}
	e.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"user_id":       rec.UserID,
		"helplines":     count,
	}).Warn("Helplines provided to user")
	return true, nil
}

func counselorNotification(ctx context.Context, e *Engine, rec *models.EscalationRecord) (bool, error) {
	experts, err := e.store.GetExperts(ctx, counselorTags)
	if err != nil {
		return false, fmt.Errorf("counselor lookup: %w", err)
	}
	if len(experts) == 0 {
		return false, fmt.Errorf("no available counselors")
	}
	ids := make([]string, 0, len(experts))
	for _, ex := range experts {
		ids = append(ids, ex.ExpertID)
	}
	e.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"user_id":       rec.UserID,
		"counselors":    ids,
	}).Warn("Counselors notified of escalation")
	return true, nil
}

func safetyCheck(ctx context.Context, e *Engine, rec *models.EscalationRecord) (bool, error) {
	e.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"user_id":       rec.UserID,
		"check_by":      rec.ExpectedResponseBy,
	}).Warn("Safety check scheduled")
	return true, nil
}

func booking(expertType, urgency string, lead time.Duration) Action {
	return func(ctx context.Context, e *Engine, rec *models.EscalationRecord) (bool, error) {
		b, err := e.store.CreateBooking(ctx, models.BookingRequest{
			UserID:        rec.UserID,
			ExpertType:    expertType,
			PreferredTime: rec.TriggeredAt.Add(lead),
			UrgencyLevel:  urgency,
			Notes:         fmt.Sprintf("Escalation %s: %s", rec.EscalationID, rec.Context),
		})
		if err != nil {
			return false, fmt.Errorf("create booking: %w", err)
		}
		e.logger.WithFields(logrus.Fields{
			"escalation_id": rec.EscalationID,
			"booking_id":    b.BookingID,
			"expert_type":   expertType,
		}).Info("Escalation booking created")
		return true, nil
	}
}
