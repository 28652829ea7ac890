package config

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Default values.
const (
	DefaultListenAddress   = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 150 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1 << 20

	DefaultDBPath       = "data/roastline.db"
	DefaultRoastsDBPath = "data/roasts.db"
	DefaultBusyTimeout  = 5 * time.Second

	DefaultReviewerTimeout     = 60 * time.Second
	DefaultReviewerMaxAttempts = 2

	DefaultAdminPassword = "changeme"

	DefaultKeepDays = 7
	DefaultSchedule = "0 3 * * *"

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultLogMaxSize  = 100
	DefaultMetricsPath = "/metrics"
)

// ApplyDefaults fills every unset field.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DefaultDBPath
	}
	if cfg.Storage.RoastsDBPath == "" {
		cfg.Storage.RoastsDBPath = DefaultRoastsDBPath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultBusyTimeout
	}

	if cfg.Reviewer.Timeout == 0 {
		cfg.Reviewer.Timeout = DefaultReviewerTimeout
	}
	if cfg.Reviewer.MaxAttempts == 0 {
		cfg.Reviewer.MaxAttempts = DefaultReviewerMaxAttempts
	}

	if cfg.Security.AdminPassword == "" {
		cfg.Security.AdminPassword = DefaultAdminPassword
	}

	if cfg.Retention.KeepDays == 0 {
		cfg.Retention.KeepDays = DefaultKeepDays
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultSchedule
	}

	l := &cfg.Telemetry.Logging
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	if l.File != "" && l.MaxSizeMB == 0 {
		l.MaxSizeMB = DefaultLogMaxSize
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// EnsureSecretKey generates a random session key when none is configured.
// It reports whether a key was generated.
func EnsureSecretKey(cfg *Config) (bool, error) {
	if cfg.Security.SecretKey != "" {
		return false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, err
	}
	cfg.Security.SecretKey = hex.EncodeToString(buf)
	return true, nil
}
