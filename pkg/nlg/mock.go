package nlg

import (
	"context"
	"fmt"
	"sync"

	"careroute/pkg/classifier"
	"careroute/pkg/models"
)

// MockClient is a deterministic backend for local runs and tests. It classifies
// with the keyword classifier and echoes the capability in generated text.
type MockClient struct {
	mu          sync.Mutex
	AnalyzeErr  error
	GenerateErr error
	calls       int
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Analyze(ctx context.Context, message string, history []string) (models.Analysis, error) {
	m.mu.Lock()
	m.calls++
	err := m.AnalyzeErr
	m.mu.Unlock()

	if err != nil {
		return models.Analysis{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Analysis{}, &ClassificationError{Reason: "context done", Err: err}
	}

	a := classifier.Keyword(message)
	if !a.CrisisIndicators {
		a.RecommendedCapability = classifier.SuggestCapability(a.DetectedTags)
	}
	return a, nil
}

func (m *MockClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.calls++
	err := m.GenerateErr
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] I hear you. You said %q. Tell me a little more about how that feels.",
		prompt.Capability, prompt.Message), nil
}

// Calls returns how many backend calls were made.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
