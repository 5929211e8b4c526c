package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"careroute/pkg/models"
)

// Memory is an in-process store seeded with the reference helplines and experts.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]models.User
	helplines   []models.Helpline
	experts     []models.Expert
	bookings    []models.Booking
	escalations []models.EscalationRecord
	assessments []models.AssessmentResult
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]models.User),
		helplines: append([]models.Helpline(nil), SeedHelplines...),
		experts:   append([]models.Expert(nil), SeedExperts...),
		now:       time.Now,
	}
}

func (m *Memory) GetUser(ctx context.Context, userID string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	u.History = append([]string(nil), u.History...)
	return u, nil
}

func (m *Memory) PutUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.History = append([]string(nil), user.History...)
	m.users[user.UserID] = user
	return nil
}

func (m *Memory) GetHelplines(ctx context.Context, region string) ([]models.Helpline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Helpline
	for _, h := range m.helplines {
		if region == "" || strings.EqualFold(h.Region, region) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *Memory) GetExperts(ctx context.Context, tags []string) ([]models.Expert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Expert
	for _, e := range m.experts {
		if expertMatches(e, tags) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := models.Booking{
		BookingID:      uuid.New().String(),
		BookingRequest: req,
		Status:         "pending",
		CreatedAt:      m.now(),
	}
	m.bookings = append(m.bookings, b)
	return b, nil
}

func (m *Memory) SaveEscalationRecord(ctx context.Context, rec *models.EscalationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.escalations = append(m.escalations, copyRecord(rec))
	return nil
}

func (m *Memory) UpdateEscalationStatus(ctx context.Context, escalationID string, status models.EscalationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.escalations {
		if m.escalations[i].EscalationID == escalationID {
			m.escalations[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListEscalations(ctx context.Context, userID string) ([]models.EscalationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.EscalationRecord
	for i := range m.escalations {
		if m.escalations[i].UserID == userID {
			out = append(out, copyRecord(&m.escalations[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

func (m *Memory) ListBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveAssessmentResult(ctx context.Context, res *models.AssessmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *res
	if c.ResultID == "" {
		c.ResultID = uuid.New().String()
		res.ResultID = c.ResultID
	}
	c.Recommendations = append([]string(nil), res.Recommendations...)
	c.NextSteps = append([]string(nil), res.NextSteps...)
	m.assessments = append(m.assessments, c)
	return nil
}

func (m *Memory) ListAssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AssessmentResult
	for _, r := range m.assessments {
		if r.UserID == userID {
			r.Recommendations = append([]string(nil), r.Recommendations...)
			r.NextSteps = append([]string(nil), r.NextSteps...)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) EscalationStats(ctx context.Context, since time.Time) (models.EscalationStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := models.EscalationStats{CountsByLevel: make(map[models.EscalationLevel]int)}
	for _, r := range m.escalations {
		stats.CountsByLevel[r.Level]++
		if !r.TriggeredAt.Before(since) {
			stats.Recent++
		}
		if r.Status == models.StatusActive {
			stats.Active++
		}
	}
	return stats, nil
}

func copyRecord(rec *models.EscalationRecord) models.EscalationRecord {
	c := *rec
	c.ActionsTaken = make(map[string]bool, len(rec.ActionsTaken))
	for k, v := range rec.ActionsTaken {
		c.ActionsTaken[k] = v
	}
	c.NotificationsSent = make(map[string]bool, len(rec.NotificationsSent))
	for k, v := range rec.NotificationsSent {
		c.NotificationsSent[k] = v
	}
	return c
}
