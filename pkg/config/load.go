package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the service's own environment overrides.
const EnvPrefix = "ROASTLINE_"

// LoadConfig reads the YAML file at path, applies defaults and validates.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads the file, then applies environment
// overrides and validates again. Variables from a .env file in the working
// directory are loaded first; they never replace variables already set.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := resolveSecrets(context.Background(), cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the named files. Missing files are
// ignored.
func LoadDotEnv(filenames ...string) error {
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(EnvPrefix + "LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv(EnvPrefix + "DB_PATH"); val != "" {
		cfg.Storage.DBPath = val
	} else if val := os.Getenv("DATABASE_URL"); val != "" {
		cfg.Storage.DBPath = strings.TrimPrefix(val, "sqlite:///")
	}
	if val := os.Getenv(EnvPrefix + "ROASTS_DB_PATH"); val != "" {
		cfg.Storage.RoastsDBPath = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FILE"); val != "" {
		cfg.Telemetry.Logging.File = val
		if cfg.Telemetry.Logging.MaxSizeMB == 0 {
			cfg.Telemetry.Logging.MaxSizeMB = DefaultLogMaxSize
		}
	}
	if val := os.Getenv(EnvPrefix + "RETENTION_KEEP_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.KeepDays = i
		}
	}

	if val := os.Getenv("ANTHROPIC_API_KEY"); val != "" {
		cfg.Reviewer.APIKey = val
	}
	if val := os.Getenv("ADMIN_PASSWORD"); val != "" {
		cfg.Security.AdminPassword = val
	}
	if val := os.Getenv("SECRET_KEY"); val != "" {
		cfg.Security.SecretKey = val
	}
	if val := os.Getenv("TRUSTED_PROXY_COUNT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Security.TrustedProxyCount = i
		}
	}
	if val := os.Getenv(EnvPrefix + "SECRETS_DIR"); val != "" {
		cfg.Security.SecretsDir = val
	}
	if val := os.Getenv(EnvPrefix + "SECURE_COOKIES"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Security.SecureCookies = b
		}
	}
}
