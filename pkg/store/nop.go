package store

import (
	"context"
	"time"

	"careroute/pkg/models"
)

// Nop stands in for a store that is entirely down. Reads come back empty and
// writes report ErrUnavailable.
type Nop struct{}

func (Nop) GetUser(ctx context.Context, userID string) (models.User, error) {
	return models.User{}, ErrUnavailable
}

func (Nop) PutUser(ctx context.Context, user models.User) error { return ErrUnavailable }

func (Nop) GetHelplines(ctx context.Context, region string) ([]models.Helpline, error) {
	return nil, nil
}

func (Nop) GetExperts(ctx context.Context, tags []string) ([]models.Expert, error) {
	return nil, nil
}

func (Nop) CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error) {
	return models.Booking{}, ErrUnavailable
}

func (Nop) SaveEscalationRecord(ctx context.Context, rec *models.EscalationRecord) error {
	return ErrUnavailable
}

func (Nop) UpdateEscalationStatus(ctx context.Context, escalationID string, status models.EscalationStatus) (bool, error) {
	return false, ErrUnavailable
}

func (Nop) ListEscalations(ctx context.Context, userID string) ([]models.EscalationRecord, error) {
	return nil, nil
}

func (Nop) ListBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	return nil, nil
}

func (Nop) SaveAssessmentResult(ctx context.Context, res *models.AssessmentResult) error {
	return ErrUnavailable
}

func (Nop) ListAssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error) {
	return nil, nil
}

func (Nop) EscalationStats(ctx context.Context, since time.Time) (models.EscalationStats, error) {
	return models.EscalationStats{}, ErrUnavailable
}
