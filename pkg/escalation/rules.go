// Package escalation turns a severity level into ordered actions, notification
// fan-out and a response deadline, and tracks follow-ups on open escalations.
package escalation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"careroute/pkg/constants"
	"careroute/pkg/models"
)

// Rule is the static policy for one escalation level.
type Rule struct {
	MaxResponseTime time.Duration
	Channels        []string
	Actions         []string
}

// Rules is read-only once the engine is built.
type Rules map[models.EscalationLevel]Rule

// Levels lists escalation levels from most to least severe.
var Levels = []models.EscalationLevel{models.LevelCrisis, models.LevelUrgent, models.LevelHigh, models.LevelNormal}

func DefaultRules() Rules {
	return Rules{
		models.LevelCrisis: {
			MaxResponseTime: 5 * time.Minute,
			Channels:        []string{constants.ChannelEmail, constants.ChannelSMS, constants.ChannelPush},
			Actions:         []string{constants.ActionImmediateHelpline, constants.ActionCounselorNotification, constants.ActionSafetyCheck},
		},
		models.LevelUrgent: {
			MaxResponseTime: 2 * time.Hour,
			Channels:        []string{constants.ChannelEmail, constants.ChannelPush},
			Actions:         []string{constants.ActionSameDayBooking, constants.ActionCounselorNotification},
		},
		models.LevelHigh: {
			MaxResponseTime: 24 * time.Hour,
			Channels:        []string{constants.ChannelEmail},
			Actions:         []string{constants.ActionPriorityBooking, constants.ActionCounselorNotification},
		},
		models.LevelNormal: {
			MaxResponseTime: 72 * time.Hour,
			Channels:        []string{constants.ChannelEmail},
			Actions:         []string{constants.ActionStandardBooking},
		},
	}
}

type ruleDoc struct {
	MaxResponseTime string   `yaml:"max_response_time"`
	Channels        []string `yaml:"notification_channels"`
	Actions         []string `yaml:"required_actions"`
}

type rulesDoc struct {
	Levels map[string]ruleDoc `yaml:"levels"`
}

// LoadRules reads level overrides from a YAML file on top of DefaultRules.
// Levels missing from the file keep their defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (Rules, error) {
	var doc rulesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := DefaultRules()
	for name, rd := range doc.Levels {
		level := models.EscalationLevel(name)
		base, ok := rules[level]
		if !ok {
			return nil, fmt.Errorf("unknown escalation level %q", name)
		}
		if rd.MaxResponseTime != "" {
			d, err := time.ParseDuration(rd.MaxResponseTime)
			if err != nil {
				return nil, fmt.Errorf("level %s: invalid max_response_time: %w", name, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("level %s: max_response_time must be positive", name)
			}
			base.MaxResponseTime = d
		}
		if rd.Channels != nil {
			base.Channels = rd.Channels
		}
		if rd.Actions != nil {
			base.Actions = rd.Actions
		}
		rules[level] = base
	}
	return rules, nil
}

// YAML renders the rules in the same shape LoadRules reads.
func (r Rules) YAML() ([]byte, error) {
	doc := rulesDoc{Levels: make(map[string]ruleDoc, len(r))}
	for level, rule := range r {
		doc.Levels[string(level)] = ruleDoc{
			MaxResponseTime: rule.MaxResponseTime.String(),
			Channels:        rule.Channels,
			Actions:         rule.Actions,
		}
	}
	return yaml.Marshal(doc)
}

// RuleInfo is the listing form of a rule.
type RuleInfo struct {
	Level           models.EscalationLevel `json:"level"`
	MaxResponseTime string                 `json:"max_response_time"`
	Channels        []string               `json:"notification_channels"`
	Actions         []string               `json:"required_actions"`
}

// Describe lists rules ordered by severity.
func (r Rules) Describe() []RuleInfo {
	out := make([]RuleInfo, 0, len(r))
	for _, level := range Levels {
		rule, ok := r[level]
		if !ok {
			continue
		}
		out = append(out, RuleInfo{
			Level:           level,
			MaxResponseTime: rule.MaxResponseTime.String(),
			Channels:        append([]string(nil), rule.Channels...),
			Actions:         append([]string(nil), rule.Actions...),
		})
	}
	return out
}
