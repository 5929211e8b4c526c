// Package store defines the persistence collaborator and its backends.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"careroute/pkg/models"
)

var (
	// ErrUnavailable is returned by backends that cannot serve a request at all.
	ErrUnavailable = errors.New("store unavailable")
	ErrNotFound    = errors.New("not found")
)

// Store persists users, reference data, bookings and escalation records. Every
// call may fail independently and callers must tolerate it.
type Store interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	PutUser(ctx context.Context, user models.User) error
	GetHelplines(ctx context.Context, region string) ([]models.Helpline, error)
	GetExperts(ctx context.Context, tags []string) ([]models.Expert, error)
	CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error)
	SaveEscalationRecord(ctx context.Context, rec *models.EscalationRecord) error
	// UpdateEscalationStatus reports whether a record with that id existed.
	UpdateEscalationStatus(ctx context.Context, escalationID string, status models.EscalationStatus) (bool, error)
	ListEscalations(ctx context.Context, userID string) ([]models.EscalationRecord, error)
	ListBookings(ctx context.Context, userID string) ([]models.Booking, error)
	SaveAssessmentResult(ctx context.Context, res *models.AssessmentResult) error
	// ListAssessmentResults returns newest first, at most limit entries when limit > 0.
	ListAssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error)
	// EscalationStats counts escalations per level, those triggered at or after
	// since, and those still active.
	EscalationStats(ctx context.Context, since time.Time) (models.EscalationStats, error)
}

// expertMatches reports whether an available expert covers any of tags. An
// empty tag list matches every available expert.
func expertMatches(e models.Expert, tags []string) bool {
	if !e.Available {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		t = strings.ToLower(t)
		if strings.ToLower(e.Type) == t {
			return true
		}
		for _, s := range e.Specializations {
			if strings.ToLower(s) == t {
				return true
			}
		}
	}
	return false
}
