// Package capability defines the response capabilities a message can be routed
// to and the read-only registry that holds them.
package capability

import (
	"context"

	"careroute/pkg/models"
)

// Capability produces a response for a class of tagged concerns.
type Capability interface {
	ID() models.CapabilityID
	Tags() []string
	Priority() int
	Respond(ctx context.Context, req Request) (Response, error)
}

type Request struct {
	UserID         string
	SessionID      string
	Message        string
	Analysis       models.Analysis
	Stage          models.Stage
	TurnCount      int
	TechniquesUsed []string
	Language       models.Language
	Style          models.Style
}

type Response struct {
	Text                  string
	Techniques            []string
	NextSteps             []string
	FollowUpNeeded        bool
	RequestsCollaboration bool
	SuggestedCapability   models.CapabilityID
	Details               map[string]string
	// EscalationLevel asks the orchestrator to escalate to a human. Empty means no.
	EscalationLevel models.EscalationLevel
}

// profile carries the static identity every capability declares.
type profile struct {
	id       models.CapabilityID
	tags     []string
	priority int
}

func (p profile) ID() models.CapabilityID { return p.id }
func (p profile) Tags() []string          { return p.tags }
func (p profile) Priority() int           { return p.priority }
