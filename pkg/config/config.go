package config

import "time"

// Config is the process configuration. Runtime policy (budget, quotas, kill
// switch, model) lives in the settings table instead, so it can change
// without a restart.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Reviewer  ReviewerConfig  `yaml:"reviewer"`
	Security  SecurityConfig  `yaml:"security"`
	Retention RetentionConfig `yaml:"retention"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the address to bind, e.g. ":8080".
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// StorageConfig locates the two SQLite databases.
type StorageConfig struct {
	// DBPath holds budget, usage counters and settings.
	DBPath string `yaml:"db_path"`

	// RoastsDBPath holds the roast log.
	RoastsDBPath string `yaml:"roasts_db_path"`

	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ReviewerConfig configures the Anthropic client. With no API key the mock
// reviewer is used.
type ReviewerConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// SecurityConfig holds admin and session secrets.
type SecurityConfig struct {
	AdminPassword string `yaml:"admin_password"`

	// SecretKey signs session cookies. A random key is generated when empty,
	// so sessions do not survive a restart.
	SecretKey string `yaml:"secret_key"`

	// TrustedProxyCount is how many X-Forwarded-For hops to trust.
	TrustedProxyCount int `yaml:"trusted_proxy_count"`

	SecureCookies bool `yaml:"secure_cookies"`

	// SecretsDir holds one file per secret for ${secret:name} references.
	// Environment variables (ROASTLINE_SECRET_<NAME>) are consulted first.
	SecretsDir string `yaml:"secrets_dir"`
}

// RetentionConfig configures daily usage pruning.
type RetentionConfig struct {
	KeepDays int    `yaml:"keep_days"`
	Schedule string `yaml:"schedule"`

	// PruneOnStartup runs one sweep before the server starts.
	PruneOnStartup *bool `yaml:"prune_on_startup"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	AddSource     bool   `yaml:"add_source"`
	RedactSecrets *bool  `yaml:"redact_secrets"`

	// File enables rotated file output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled        *bool  `yaml:"enabled"`
	Path           string `yaml:"path"`
	ProcessMetrics bool   `yaml:"process_metrics"`
}

// MetricsEnabled reports whether /metrics is served.
func (c *Config) MetricsEnabled() bool {
	return c.Telemetry.Metrics.Enabled == nil || *c.Telemetry.Metrics.Enabled
}

// RedactSecrets reports whether log redaction is on.
func (c *Config) RedactSecrets() bool {
	return c.Telemetry.Logging.RedactSecrets == nil || *c.Telemetry.Logging.RedactSecrets
}

// PruneOnStartup reports whether a sweep runs before serving.
func (c *Config) PruneOnStartup() bool {
	return c.Retention.PruneOnStartup == nil || *c.Retention.PruneOnStartup
}
