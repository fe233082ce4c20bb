// Package config provides configuration loading and validation for remibot.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [storage]: SQLite database path and retry policy
//   - [scheduler]: local time zone, misfire grace, armed-job audit file
//   - [escalation]: priority tier table (interval + repeat budget per tier)
//   - [workers]: worker pool sizing
//   - [channels.telegram]: delivery channel settings
//   - [metrics]: Prometheus metrics and health endpoint
//   - [logging]: level, format, and output
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, e.g. token = "${TELEGRAM_BOT_TOKEN}".
package config

// Config represents the main application configuration.
type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Escalation EscalationConfig `toml:"escalation"`
	Workers    WorkersConfig    `toml:"workers"`
	Channels   ChannelsConfig   `toml:"channels"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Logging    LoggingConfig    `toml:"logging"`
}

// MetricsConfig configures the Prometheus metrics and health endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// StorageConfig configures the reminder store.
type StorageConfig struct {
	Path             string `toml:"path"`              // SQLite database file
	RetryMaxAttempts int    `toml:"retry_max_attempts"`
	RetryBackoffMS   int    `toml:"retry_backoff_ms"`
}

// SchedulerConfig configures the trigger scheduler.
type SchedulerConfig struct {
	Timezone     string `toml:"timezone"`      // local zone for recurring triggers
	GraceSeconds int    `toml:"grace_seconds"` // window past the due instant still treated as on time
	AuditPath    string `toml:"audit_path"`    // optional JSON armed-job audit file
}

// TierConfig describes one priority escalation tier.
type TierConfig struct {
	IntervalMinutes int `toml:"interval_minutes"`
	Repeats         int `toml:"repeats"`
}

// EscalationConfig holds the closed priority tier table.
type EscalationConfig struct {
	Tier1 TierConfig `toml:"tier1"`
	Tier2 TierConfig `toml:"tier2"`
	Tier3 TierConfig `toml:"tier3"`
}

// WorkersConfig configures the fired-job worker pool.
type WorkersConfig struct {
	PoolSize  int `toml:"pool_size"`
	QueueSize int `toml:"queue_size"`
}

// ChannelsConfig holds delivery channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig configures the Telegram gateway.
type TelegramConfig struct {
	Enabled            bool   `toml:"enabled"`
	Token              string `toml:"token"`
	LongPollTimeoutSec int    `toml:"longpoll_timeout_seconds"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}
