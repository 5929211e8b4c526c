// Package session tracks per-conversation state and classifies each turn into
// a conversational stage.
package session

import (
	"time"

	"careroute/pkg/models"
)

// Session is mutated once per turn while its lock is held.
type Session struct {
	SessionID      string          `json:"session_id"`
	UserID         string          `json:"user_id"`
	Stage          models.Stage    `json:"stage"`
	TurnCount      int             `json:"turn_count"`
	TechniquesUsed []string        `json:"techniques_used"`
	CrisisDetected bool            `json:"crisis_detected"`
	Language       models.Language `json:"language"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func New(sessionID, userID string, lang models.Language, now time.Time) *Session {
	return &Session{
		SessionID:      sessionID,
		UserID:         userID,
		Stage:          models.StageGreeting,
		TechniquesUsed: []string{},
		Language:       lang,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// BeginTurn counts the turn and classifies it. A session already in crisis
// stays in the crisis stage.
func (s *Session) BeginTurn(a models.Analysis, now time.Time) models.Stage {
	s.TurnCount++
	s.Stage = ClassifyStage(s.TurnCount, a.EmotionalState, a.UrgencyLevel, a.CrisisIndicators)
	if s.CrisisDetected {
		s.Stage = models.StageCrisis
	}
	s.UpdatedAt = now
	return s.Stage
}

// MarkCrisis sets the sticky crisis flag.
func (s *Session) MarkCrisis() {
	s.CrisisDetected = true
	s.Stage = models.StageCrisis
}

// RecordTechniques unions ids into the techniques used so far.
func (s *Session) RecordTechniques(ids ...string) {
	s.TechniquesUsed = models.UnionSorted(s.TechniquesUsed, ids...)
}

func (s *Session) Clone() *Session {
	c := *s
	c.TechniquesUsed = append([]string(nil), s.TechniquesUsed...)
	return &c
}
