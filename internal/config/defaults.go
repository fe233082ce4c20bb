package config

// applyDefaults fills in zero-valued fields with their defaults.
func applyDefaults(c *Config) {
	if c.Storage.Path == "" {
		c.Storage.Path = "~/.remibot/reminders.db"
	}
	if c.Storage.RetryMaxAttempts == 0 {
		c.Storage.RetryMaxAttempts = 3
	}
	if c.Storage.RetryBackoffMS == 0 {
		c.Storage.RetryBackoffMS = 200
	}

	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "Asia/Taipei"
	}
	if c.Scheduler.GraceSeconds == 0 {
		c.Scheduler.GraceSeconds = 30
	}

	if c.Escalation.Tier1 == (TierConfig{}) {
		c.Escalation.Tier1 = TierConfig{IntervalMinutes: 60, Repeats: 1}
	}
	if c.Escalation.Tier2 == (TierConfig{}) {
		c.Escalation.Tier2 = TierConfig{IntervalMinutes: 15, Repeats: 2}
	}
	if c.Escalation.Tier3 == (TierConfig{}) {
		c.Escalation.Tier3 = TierConfig{IntervalMinutes: 5, Repeats: 3}
	}

	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = 5
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 100
	}

	if c.Channels.Telegram.LongPollTimeoutSec == 0 {
		c.Channels.Telegram.LongPollTimeoutSec = 30
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}
