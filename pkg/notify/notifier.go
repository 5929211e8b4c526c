// Package notify delivers escalation notifications over named channels.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/models"
)

// Notification is what a channel delivers about an escalation.
type Notification struct {
	EscalationID       string                 `json:"escalation_id"`
	UserID             string                 `json:"user_id"`
	Level              models.EscalationLevel `json:"level"`
	Context            string                 `json:"context,omitempty"`
	Message            string                 `json:"message,omitempty"`
	ExpectedResponseBy time.Time              `json:"expected_response_by"`
	CreatedAt          time.Time              `json:"created_at"`
}

// FromRecord builds the notification for an escalation record.
func FromRecord(rec *models.EscalationRecord, now time.Time) Notification {
	return Notification{
		EscalationID:       rec.EscalationID,
		UserID:             rec.UserID,
		Level:              rec.Level,
		Context:            rec.Context,
		Message:            rec.Message,
		ExpectedResponseBy: rec.ExpectedResponseBy,
		CreatedAt:          now,
	}
}

type Notifier interface {
	Send(ctx context.Context, channel string, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, channel string, n Notification) error

func (f NotifierFunc) Send(ctx context.Context, channel string, n Notification) error {
	return f(ctx, channel, n)
}

// LogNotifier writes each notification to the log. It is the delivery sink
// when no external gateway is configured.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(ctx context.Context, channel string, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.WithFields(logrus.Fields{
		"channel":              channel,
		"escalation_id":        n.EscalationID,
		"user_id":              n.UserID,
		"level":                n.Level,
		"expected_response_by": n.ExpectedResponseBy,
	}).Info("Escalation notification sent")
	return nil
}
