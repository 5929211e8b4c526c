package capability

import (
	"context"

	"github.com/sirupsen/logrus"

	"careroute/pkg/models"
	"careroute/pkg/nlg"
)

// compose asks the generator for text and falls back to the canned reply when
// the backend fails. Capabilities never surface generator errors.
func compose(ctx context.Context, gen nlg.Client, logger *logrus.Logger, id models.CapabilityID, req Request, extra, fallback string) string {
	prompt := nlg.Prompt{
		Capability: id,
		System:     nlg.SystemPrompt(id, req.Language, req.Style, extra),
		Message:    req.Message,
		Language:   req.Language,
		Style:      req.Style,
	}

	text, err := gen.Generate(ctx, prompt)
	if err != nil || text == "" {
		logger.WithError(err).WithFields(logrus.Fields{
			"capability": id,
			"session_id": req.SessionID,
		}).Warn("Generation failed, using canned reply")
		return fallback
	}
	return text
}
