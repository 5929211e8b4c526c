// Package crisis produces the safety response for messages that signal danger.
package crisis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"careroute/pkg/constants"
	"careroute/pkg/language"
	"careroute/pkg/metrics"
	"careroute/pkg/models"
)

// HelplineSource looks up helplines for a region.
type HelplineSource interface {
	GetHelplines(ctx context.Context, region string) ([]models.Helpline, error)
}

// ImmediateActions are returned with every crisis response.
var ImmediateActions = []string{"provide_helpline", "connect_counselor", "safety_planning"}

var crisisNextSteps = []string{"Contact helpline immediately", "Wait for counselor connection", "Create safety plan"}

type Response struct {
	Text             string            `json:"text"`
	Helplines        map[string]string `json:"helplines"`
	ImmediateActions []string          `json:"immediate_actions"`
	NextSteps        []string          `json:"next_steps"`
	EscalationNeeded bool              `json:"escalation_needed"`
	Degraded         bool              `json:"degraded,omitempty"`
}

type Handler struct {
	helplines HelplineSource
	region    string
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewHandler(helplines HelplineSource, region string, logger *logrus.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		helplines: helplines,
		region:    region,
		logger:    logger,
		metrics:   metrics,
	}
}

// Handle never fails. The caller is responsible for marking the session as in
// crisis and for triggering the crisis escalation.
func (h *Handler) Handle(ctx context.Context, userID string, lang models.Language) Response {
	h.metrics.CrisisInterventions.Inc()

	resp := Response{
		ImmediateActions: append([]string(nil), ImmediateActions...),
		NextSteps:        append([]string(nil), crisisNextSteps...),
		EscalationNeeded: true,
	}

	list, err := h.lookup(ctx)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"region":  h.region,
		}).Warn("Helpline lookup failed, using static crisis message")

		resp.Helplines = defaultHelplines()
		resp.Text = constants.StaticCrisisMessage + "\n\n" + formatHelplines(resp.Helplines)
		resp.Degraded = true
		return resp
	}

	resp.Helplines = make(map[string]string, len(list))
	for _, hl := range list {
		if hl.Number != "" {
			resp.Helplines[hl.Issue] = hl.Number
		}
	}
	if len(resp.Helplines) == 0 {
		resp.Helplines = defaultHelplines()
	}

	msgs := language.Crisis(lang)
	resp.Text = fmt.Sprintf("%s\n\n%s\n%s\n\n%s",
		msgs.CrisisMessage, msgs.HelplinePrompt, formatHelplines(resp.Helplines), msgs.EmergencyPrompt)

	h.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"language":  lang,
		"helplines": len(resp.Helplines),
	}).Warn("Crisis intervention delivered")

	return resp
}

func (h *Handler) lookup(ctx context.Context) (list []models.Helpline, err error) {
	if h.helplines == nil {
		return nil, fmt.Errorf("no helpline source configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("helpline lookup panicked: %v", r)
		}
	}()
	return h.helplines.GetHelplines(ctx, h.region)
}

func defaultHelplines() map[string]string {
	out := make(map[string]string, len(constants.DefaultHelplines))
	for k, v := range constants.DefaultHelplines {
		out[k] = v
	}
	return out
}

func formatHelplines(helplines map[string]string) string {
	issues := make([]string, 0, len(helplines))
	for issue := range helplines {
		issues = append(issues, issue)
	}
	sort.Strings(issues)

	var b strings.Builder
	for i, issue := range issues {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s: %s", issue, helplines[issue])
	}
	return b.String()
}
