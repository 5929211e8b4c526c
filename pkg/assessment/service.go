package assessment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/metrics"
	"careroute/pkg/models"
)

// Store is the part of the persistence layer assessments need.
type Store interface {
	SaveAssessmentResult(ctx context.Context, res *models.AssessmentResult) error
	ListAssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error)
}

const DefaultResultLimit = 10

type Service struct {
	store   Store
	logger  *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, logger *logrus.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Submission is a scored and, when the store allows, persisted result.
type Submission struct {
	Result  *models.AssessmentResult
	Outcome Outcome
	Saved   bool
}

// Submit scores one questionnaire. A result that cannot be persisted is still
// returned with Saved unset.
func (s *Service) Submit(ctx context.Context, assessmentID, userID string, responses []int) (*Submission, error) {
	if strings.TrimSpace(userID) == "" || len(responses) == 0 {
		return nil, fmt.Errorf("%w: user_id and responses are required", ErrInvalidResponses)
	}
	in, ok := Lookup(assessmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAssessment, assessmentID)
	}

	out, err := in.Score(responses)
	if err != nil {
		return nil, err
	}

	res := &models.AssessmentResult{
		UserID:          userID,
		AssessmentType:  in.ID,
		Score:           out.Score,
		SeverityLevel:   out.SeverityLevel,
		Recommendations: out.Recommendations,
		NextSteps:       out.NextSteps,
		SafetyConcern:   out.SafetyConcern,
		CreatedAt:       s.now(),
	}

	log := s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"assessment": in.ID,
		"score":      out.Score,
		"tier":       out.Tier,
	})
	s.metrics.AssessmentsSubmitted.WithLabelValues(in.ID, string(out.Tier)).Inc()

	if err := s.store.SaveAssessmentResult(ctx, res); err != nil {
		s.metrics.PersistenceFailures.WithLabelValues("save_assessment").Inc()
		log.WithError(err).Error("Failed to save assessment result")
		return &Submission{Result: res, Outcome: out}, nil
	}
	log.Info("Assessment scored")
	return &Submission{Result: res, Outcome: out, Saved: true}, nil
}

func (s *Service) Results(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error) {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	return s.store.ListAssessmentResults(ctx, userID, limit)
}
