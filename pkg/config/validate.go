package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"roastline-hq/roastline/pkg/telemetry/logging"
)

// FieldError is a validation failure for one configuration field.
type FieldError struct {
	// Field is the dotted YAML path, e.g. "server.listen_address".
	Field string

	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every failed field.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks cfg and returns a ValidationError listing every problem.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		add("server.listen_address", "invalid address %q: %v", cfg.Server.ListenAddress, err)
	}
	if cfg.Server.ReadTimeout < 0 {
		add("server.read_timeout", "must not be negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		add("server.write_timeout", "must not be negative")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "must not be negative")
	}

	if cfg.Storage.DBPath == "" {
		add("storage.db_path", "is required")
	}
	if cfg.Storage.RoastsDBPath == "" {
		add("storage.roasts_db_path", "is required")
	}
	if cfg.Storage.DBPath != "" && cfg.Storage.DBPath == cfg.Storage.RoastsDBPath {
		add("storage.roasts_db_path", "must differ from storage.db_path")
	}

	if cfg.Reviewer.Timeout < 0 {
		add("reviewer.timeout", "must not be negative")
	}
	if cfg.Reviewer.MaxAttempts < 0 || cfg.Reviewer.MaxAttempts > 5 {
		add("reviewer.max_attempts", "must be between 1 and 5, got %d", cfg.Reviewer.MaxAttempts)
	}
	if cfg.Reviewer.BaseURL != "" && !strings.HasPrefix(cfg.Reviewer.BaseURL, "http://") && !strings.HasPrefix(cfg.Reviewer.BaseURL, "https://") {
		add("reviewer.base_url", "must be an http or https URL")
	}

	if cfg.Security.TrustedProxyCount < 0 {
		add("security.trusted_proxy_count", "must not be negative")
	}

	if cfg.Retention.KeepDays < 1 {
		add("retention.keep_days", "must be at least 1, got %d", cfg.Retention.KeepDays)
	}
	if cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			add("retention.schedule", "invalid cron expression: %v", err)
		}
	}

	if _, err := logging.ParseLevel(cfg.Telemetry.Logging.Level); err != nil {
		add("telemetry.logging.level", "%v", err)
	}
	switch strings.ToLower(cfg.Telemetry.Logging.Format) {
	case "json", "text", "console", "":
	default:
		add("telemetry.logging.format", "must be json or text, got %q", cfg.Telemetry.Logging.Format)
	}
	if !strings.HasPrefix(cfg.Telemetry.Metrics.Path, "/") {
		add("telemetry.metrics.path", "must start with /")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
