package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careroute/pkg/metrics"
	"careroute/pkg/models"
	"careroute/pkg/store"
)

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		responses []int
		score     int
		level     string
		tier      Tier
	}{
		{"gad7 minimal", "GAD-7", []int{0, 0, 1, 0, 1, 0, 0}, 2, "Minimal anxiety", TierMinimal},
		{"gad7 mild boundary", "GAD-7", []int{2, 2, 1, 0, 0, 0, 0}, 5, "Mild anxiety", TierMild},
		{"gad7 moderate", "gad-7", []int{2, 2, 2, 2, 1, 1, 0}, 10, "Moderate anxiety", TierModerate},
		{"gad7 severe", "GAD-7", repeat(3, 7), 21, "Severe anxiety", TierSevere},
		{"phq9 moderately severe", "PHQ-9", []int{3, 3, 3, 3, 3, 2, 0, 0, 0}, 17, "Moderately severe depression", TierSevere},
		{"phq9 severe", "PHQ-9", []int{3, 3, 3, 3, 3, 3, 2, 0, 0}, 20, "Severe depression", TierSevere},
		// items 4, 5, 7 and 8 are reverse scored
		{"pss low", "PSS", []int{0, 0, 0, 4, 4, 0, 4, 4, 0, 0}, 0, "Low stress", TierMinimal},
		{"pss high", "PSS", []int{4, 4, 4, 0, 0, 4, 0, 0, 4, 4}, 40, "High perceived stress", TierSevere},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := Lookup(tt.id)
			require.True(t, ok)

			out, err := in.Score(tt.responses)
			require.NoError(t, err)
			assert.Equal(t, tt.score, out.Score)
			assert.Equal(t, tt.level, out.SeverityLevel)
			assert.Equal(t, tt.tier, out.Tier)
			assert.NotEmpty(t, out.Recommendations)
			assert.NotEmpty(t, out.NextSteps)
		})
	}
}

func TestScore_RejectsBadAnswers(t *testing.T) {
	in, _ := Lookup("GAD-7")

	_, err := in.Score([]int{1, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidResponses)

	_, err = in.Score([]int{0, 0, 0, 0, 0, 0, 4})
	assert.ErrorIs(t, err, ErrInvalidResponses)

	_, err = in.Score([]int{0, 0, 0, 0, 0, -1, 0})
	assert.ErrorIs(t, err, ErrInvalidResponses)
}

func TestScore_PHQ9SelfHarmItemEscalates(t *testing.T) {
	in, _ := Lookup("PHQ-9")

	out, err := in.Score([]int{0, 0, 0, 0, 0, 0, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, TierMinimal, out.Tier)
	assert.True(t, out.SafetyConcern)
	assert.Equal(t, models.LevelUrgent, out.EscalationLevel)
	assert.Contains(t, out.NextSteps, "A counselor will reach out to you")

	out, err = in.Score(append(repeat(2, 8), 0))
	require.NoError(t, err)
	assert.False(t, out.SafetyConcern)
	assert.Empty(t, out.EscalationLevel)
}

func TestAvailable(t *testing.T) {
	infos := Available()
	require.Len(t, infos, 3)
	assert.Equal(t, "GAD-7", infos[0].ID)
	assert.Equal(t, 7, infos[0].QuestionCount)
	assert.Equal(t, "PHQ-9", infos[1].ID)
	assert.Equal(t, "PSS", infos[2].ID)
	assert.Equal(t, 4, infos[2].MaxAnswer)
}

func TestService_SubmitAndResults(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	mem := store.NewMemory()
	svc := NewService(mem, logger, metrics.NewTestMetrics())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	svc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	_, err := svc.Submit(ctx, "GAD-7", "", repeat(1, 7))
	assert.ErrorIs(t, err, ErrInvalidResponses)

	_, err = svc.Submit(ctx, "BDI", "u1", repeat(1, 21))
	assert.ErrorIs(t, err, ErrUnknownAssessment)

	first, err := svc.Submit(ctx, "GAD-7", "u1", repeat(1, 7))
	require.NoError(t, err)
	assert.True(t, first.Saved)
	assert.Equal(t, 7, first.Result.Score)
	assert.NotEmpty(t, first.Result.ResultID)

	second, err := svc.Submit(ctx, "phq-9", "u1", repeat(0, 9))
	require.NoError(t, err)
	assert.Equal(t, "PHQ-9", second.Result.AssessmentType)

	results, err := svc.Results(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PHQ-9", results[0].AssessmentType)
	assert.Equal(t, "GAD-7", results[1].AssessmentType)

	results, err = svc.Results(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestService_SubmitWithStoreDown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := NewService(store.Nop{}, logger, metrics.NewTestMetrics())

	sub, err := svc.Submit(context.Background(), "GAD-7", "u1", repeat(3, 7))
	require.NoError(t, err)
	assert.False(t, sub.Saved)
	assert.Equal(t, "Severe anxiety", sub.Result.SeverityLevel)
	assert.Equal(t, "Failed to save assessment result", hook.LastEntry().Message)
}
