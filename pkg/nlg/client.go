// Package nlg defines the language-model collaborator and its adapters.
package nlg

import (
	"context"
	"fmt"

	"careroute/pkg/models"
)

// Client is the classifier and text generation backend. Both calls are
// unreliable: callers must handle timeouts and malformed output.
type Client interface {
	Analyze(ctx context.Context, message string, history []string) (models.Analysis, error)
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt is the payload a capability hands to the generator.
type Prompt struct {
	Capability models.CapabilityID
	System     string
	Message    string
	Language   models.Language
	Style      models.Style
	Context    map[string]string
}

// ClassificationError reports an analysis the backend could not produce or
// that failed validation.
type ClassificationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
	}
	return "classification failed: " + e.Reason
}

func (e *ClassificationError) Unwrap() error { return e.Err }
