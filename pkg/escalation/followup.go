package escalation

import (
	"context"
	"sort"
	"sync"
	"time"

	"careroute/pkg/models"
)

// FollowUp is a pending check that someone responded to an escalation.
type FollowUp struct {
	EscalationID string                 `json:"escalation_id"`
	UserID       string                 `json:"user_id"`
	Level        models.EscalationLevel `json:"level"`
	Context      string                 `json:"context,omitempty"`
	DueAt        time.Time              `json:"due_at"`
}

// Scheduler tracks follow-up deadlines for open escalations.
type Scheduler interface {
	ScheduleFollowUp(ctx context.Context, rec *models.EscalationRecord, due time.Time) error
	// Due returns follow-ups whose deadline is at or before now, earliest first.
	Due(ctx context.Context, now time.Time) ([]FollowUp, error)
	// Resolve removes a follow-up and reports whether this call removed it.
	Resolve(ctx context.Context, escalationID string) (bool, error)
	Pending(ctx context.Context) (int64, error)
}

// MemoryScheduler keeps follow-ups in process.
type MemoryScheduler struct {
	mu      sync.Mutex
	pending map[string]FollowUp
}

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{pending: make(map[string]FollowUp)}
}

func (m *MemoryScheduler) ScheduleFollowUp(ctx context.Context, rec *models.EscalationRecord, due time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[rec.EscalationID] = FollowUp{
		EscalationID: rec.EscalationID,
		UserID:       rec.UserID,
		Level:        rec.Level,
		Context:      rec.Context,
		DueAt:        due,
	}
	return nil
}

func (m *MemoryScheduler) Due(ctx context.Context, now time.Time) ([]FollowUp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []FollowUp
	for _, f := range m.pending {
		if !f.DueAt.After(now) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (m *MemoryScheduler) Resolve(ctx context.Context, escalationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[escalationID]; !ok {
		return false, nil
	}
	delete(m.pending, escalationID)
	return true, nil
}

func (m *MemoryScheduler) Pending(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pending)), nil
}
