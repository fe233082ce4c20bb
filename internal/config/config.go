package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML configuration file, applies defaults, and expands
// environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file read.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Storage.Path == "" {
		errors = append(errors, fmt.Errorf("storage.path is required"))
	}
	if c.Storage.RetryMaxAttempts < 1 {
		errors = append(errors, fmt.Errorf("storage.retry_max_attempts must be at least 1"))
	}

	if c.Scheduler.Timezone == "" {
		errors = append(errors, fmt.Errorf("scheduler.timezone is required"))
	} else if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err))
	}
	if c.Scheduler.GraceSeconds < 0 {
		errors = append(errors, fmt.Errorf("scheduler.grace_seconds must not be negative"))
	}

	for tier, tc := range map[string]TierConfig{
		"escalation.tier1": c.Escalation.Tier1,
		"escalation.tier2": c.Escalation.Tier2,
		"escalation.tier3": c.Escalation.Tier3,
	} {
		if tc.IntervalMinutes < 1 {
			errors = append(errors, fmt.Errorf("%s.interval_minutes must be at least 1", tier))
		}
		if tc.Repeats < 1 {
			errors = append(errors, fmt.Errorf("%s.repeats must be at least 1", tier))
		}
	}

	if c.Workers.PoolSize < 1 {
		errors = append(errors, fmt.Errorf("workers.pool_size must be at least 1"))
	}
	if c.Workers.QueueSize < 1 {
		errors = append(errors, fmt.Errorf("workers.queue_size must be at least 1"))
	}

	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token == "" {
		errors = append(errors, fmt.Errorf("channels.telegram.token is required when telegram is enabled"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	return errors
}

// expandEnvVars expands ${VAR} references and ~ paths in the configuration.
func expandEnvVars(c *Config) {
	c.Channels.Telegram.Token = expandEnv(c.Channels.Telegram.Token)
	c.Storage.Path = expandHome(expandEnv(c.Storage.Path))
	if c.Scheduler.AuditPath != "" {
		c.Scheduler.AuditPath = expandHome(expandEnv(c.Scheduler.AuditPath))
	}
}

// expandEnv expands an environment variable reference of the form
// ${VAR} or ${VAR:default}.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}

// expandHome expands a leading ~ in a path.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
