package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careroute/pkg/models"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "careroute.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStore_Users(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetUser(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			u := models.User{
				UserID:    "u1",
				Name:      "Asha",
				Language:  models.LanguageHindi,
				Style:     models.StyleGenZ,
				CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			u.AppendHistory("anxiety", "sleep")
			require.NoError(t, s.PutUser(ctx, u))

			got, err := s.GetUser(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, u, got)

			u.AppendHistory("stress")
			require.NoError(t, s.PutUser(ctx, u))
			got, err = s.GetUser(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, []string{"anxiety", "sleep", "stress"}, got.History)
		})
	}
}

func TestStore_Helplines(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			india, err := s.GetHelplines(ctx, "india")
			require.NoError(t, err)
			require.Len(t, india, 4)
			assert.Equal(t, "Suicidal Thoughts", india[0].Issue)
			assert.Equal(t, "+91-9152987821", india[0].Number)

			usa, err := s.GetHelplines(ctx, "USA")
			require.NoError(t, err)
			assert.Len(t, usa, 2)

			none, err := s.GetHelplines(ctx, "Atlantis")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_Experts(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			crisis, err := s.GetExperts(ctx, []string{"crisis"})
			require.NoError(t, err)
			ids := make([]string, 0, len(crisis))
			for _, e := range crisis {
				ids = append(ids, e.ExpertID)
			}
			assert.ElementsMatch(t, []string{"E001", "E004"}, ids)

			byType, err := s.GetExperts(ctx, []string{"Psychologist"})
			require.NoError(t, err)
			require.Len(t, byType, 1)
			assert.Equal(t, "E002", byType[0].ExpertID)

			all, err := s.GetExperts(ctx, nil)
			require.NoError(t, err)
			assert.Len(t, all, len(SeedExperts))
		})
	}
}

func TestStore_BookingsAndEscalations(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			b, err := s.CreateBooking(ctx, models.BookingRequest{
				UserID:       "u1",
				ExpertType:   "student_counselor",
				UrgencyLevel: "crisis",
				Notes:        "Escalation ESC_u1_1: test",
			})
			require.NoError(t, err)
			assert.NotEmpty(t, b.BookingID)
			assert.Equal(t, "pending", b.Status)

			_, err = s.CreateBooking(ctx, models.BookingRequest{UserID: "u2", ExpertType: "psychologist", UrgencyLevel: "high"})
			require.NoError(t, err)

			list, err := s.ListBookings(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, b.BookingID, list[0].BookingID)
			assert.Equal(t, "Escalation ESC_u1_1: test", list[0].Notes)

			older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			newer := older.Add(time.Hour)
			for i, at := range []time.Time{older, newer} {
				rec := &models.EscalationRecord{
					EscalationID:       []string{"ESC_u1_a", "ESC_u1_b"}[i],
					UserID:             "u1",
					Level:              models.LevelUrgent,
					TriggeredAt:        at,
					ActionsTaken:       map[string]bool{"same_day_booking": true, "counselor_notification": false},
					NotificationsSent:  map[string]bool{"email": true, "push": true},
					Status:             models.StatusActive,
					ExpectedResponseBy: at.Add(2 * time.Hour),
					Context:            "ctx",
				}
				require.NoError(t, s.SaveEscalationRecord(ctx, rec))
			}

			recs, err := s.ListEscalations(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "ESC_u1_b", recs[0].EscalationID)
			assert.Equal(t, newer.Add(2*time.Hour), recs[0].ExpectedResponseBy.UTC())
			assert.False(t, recs[0].ActionsTaken["counselor_notification"])
			assert.True(t, recs[0].NotificationsSent["push"])

			empty, err := s.ListEscalations(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_EscalationStatusAndStats(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			recs := []*models.EscalationRecord{
				{EscalationID: "ESC_a", UserID: "u1", Level: models.LevelCrisis, TriggeredAt: base.Add(-48 * time.Hour)},
				{EscalationID: "ESC_b", UserID: "u1", Level: models.LevelUrgent, TriggeredAt: base.Add(-time.Hour)},
				{EscalationID: "ESC_c", UserID: "u2", Level: models.LevelUrgent, TriggeredAt: base.Add(500 * time.Millisecond)},
			}
			for _, r := range recs {
				r.Status = models.StatusActive
				require.NoError(t, s.SaveEscalationRecord(ctx, r))
			}

			ok, err := s.UpdateEscalationStatus(ctx, "ESC_b", models.StatusResolved)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.UpdateEscalationStatus(ctx, "ESC_missing", models.StatusResolved)
			require.NoError(t, err)
			assert.False(t, ok)

			list, err := s.ListEscalations(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, models.StatusResolved, list[0].Status)

			// a sub-second timestamp must still compare after a whole-second cutoff
			stats, err := s.EscalationStats(ctx, base.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, map[models.EscalationLevel]int{models.LevelCrisis: 1, models.LevelUrgent: 2}, stats.CountsByLevel)
			assert.Equal(t, 2, stats.Recent)
			assert.Equal(t, 2, stats.Active)

			stats, err = s.EscalationStats(ctx, base)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Recent)
		})
	}
}

func TestStore_AssessmentResults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

			for i, typ := range []string{"GAD-7", "PHQ-9", "PSS"} {
				res := &models.AssessmentResult{
					UserID:          "u1",
					AssessmentType:  typ,
					Score:           i * 5,
					SeverityLevel:   "Mild",
					Recommendations: []string{"Keep a sleep routine"},
					SafetyConcern:   typ == "PHQ-9",
					CreatedAt:       base.Add(time.Duration(i) * time.Hour),
				}
				require.NoError(t, s.SaveAssessmentResult(ctx, res))
				assert.NotEmpty(t, res.ResultID)
			}

			all, err := s.ListAssessmentResults(ctx, "u1", 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "PSS", all[0].AssessmentType)
			assert.Equal(t, base.Add(2*time.Hour), all[0].CreatedAt.UTC())
			assert.True(t, all[1].SafetyConcern)
			assert.Equal(t, []string{"Keep a sleep routine"}, all[2].Recommendations)

			two, err := s.ListAssessmentResults(ctx, "u1", 2)
			require.NoError(t, err)
			assert.Len(t, two, 2)

			none, err := s.ListAssessmentResults(ctx, "nobody", 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var s Store = Nop{}

	_, err := s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.PutUser(ctx, models.User{}), ErrUnavailable)
	_, err = s.CreateBooking(ctx, models.BookingRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.SaveEscalationRecord(ctx, &models.EscalationRecord{}), ErrUnavailable)
	_, err = s.UpdateEscalationStatus(ctx, "ESC_a", models.StatusResolved)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.SaveAssessmentResult(ctx, &models.AssessmentResult{}), ErrUnavailable)
	_, err = s.EscalationStats(ctx, time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)

	h, err := s.GetHelplines(ctx, "India")
	assert.NoError(t, err)
	assert.Empty(t, h)
}
