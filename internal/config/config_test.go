package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[storage]
path = "/tmp/reminders.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reminders.db", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Storage.RetryMaxAttempts)
	assert.Equal(t, "Asia/Taipei", cfg.Scheduler.Timezone)
	assert.Equal(t, 30, cfg.Scheduler.GraceSeconds)
	assert.Equal(t, TierConfig{IntervalMinutes: 5, Repeats: 3}, cfg.Escalation.Tier3)
	assert.Equal(t, TierConfig{IntervalMinutes: 15, Repeats: 2}, cfg.Escalation.Tier2)
	assert.Equal(t, TierConfig{IntervalMinutes: 60, Repeats: 1}, cfg.Escalation.Tier1)
	assert.Equal(t, 5, cfg.Workers.PoolSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("REMIBOT_TEST_TOKEN", "123:abc")

	path := writeConfig(t, `
[storage]
path = "/tmp/reminders.db"

[channels.telegram]
enabled = true
token = "${REMIBOT_TEST_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Channels.Telegram.Token)
}

func TestExpandEnv_Default(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"${REMIBOT_UNSET_VAR:fallback}", "fallback"},
		{"${REMIBOT_UNSET_VAR}", ""},
		{"${broken", "${broken"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnv(tt.input), "input %q", tt.input)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/tmp/reminders.db"
	assert.Empty(t, cfg.Validate())

	cfg.Scheduler.Timezone = "Mars/Olympus"
	cfg.Escalation.Tier3.Repeats = 0
	cfg.Channels.Telegram.Enabled = true

	errs := cfg.Validate()
	assert.Len(t, errs, 3)
}

func TestValidate_MissingStoragePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = ""

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "storage.path")
}
