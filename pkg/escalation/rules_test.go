package escalation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careroute/pkg/constants"
	"careroute/pkg/models"
)

func TestParseRules_OverridesOnTopOfDefaults(t *testing.T) {
	rules, err := ParseRules([]byte(`
levels:
  urgent:
    max_response_time: 90m
    notification_channels: [email, sms, push]
`))
	require.NoError(t, err)

	urgent := rules[models.LevelUrgent]
	assert.Equal(t, 90*time.Minute, urgent.MaxResponseTime)
	assert.Equal(t, []string{"email", "sms", "push"}, urgent.Channels)
	assert.Equal(t, DefaultRules()[models.LevelUrgent].Actions, urgent.Actions)
	assert.Equal(t, DefaultRules()[models.LevelCrisis], rules[models.LevelCrisis])
}

func TestParseRules_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown level":    "levels:\n  apocalyptic:\n    max_response_time: 1m\n",
		"bad duration":     "levels:\n  high:\n    max_response_time: soon\n",
		"negative":         "levels:\n  high:\n    max_response_time: -5m\n",
		"not yaml mapping": "levels: [1, 2",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRules_YAMLRoundTrip(t *testing.T) {
	data, err := DefaultRules().YAML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), loaded)
}

func TestRules_DescribeOrderedBySeverity(t *testing.T) {
	infos := DefaultRules().Describe()
	require.Len(t, infos, 4)
	assert.Equal(t, models.LevelCrisis, infos[0].Level)
	assert.Equal(t, "5m0s", infos[0].MaxResponseTime)
	assert.Equal(t, []string{constants.ChannelEmail, constants.ChannelSMS, constants.ChannelPush}, infos[0].Channels)
	assert.Equal(t, models.LevelNormal, infos[3].Level)
}
