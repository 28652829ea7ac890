package config

import (
	"context"
	"fmt"

	"roastline-hq/roastline/pkg/secrets"
)

// resolveSecrets replaces ${secret:name} references in the credential
// fields. Providers are only built when a reference is present, so a
// missing secrets_dir is not an error for configs that do not use it.
func resolveSecrets(ctx context.Context, cfg *Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"reviewer.api_key", &cfg.Reviewer.APIKey},
		{"security.admin_password", &cfg.Security.AdminPassword},
		{"security.secret_key", &cfg.Security.SecretKey},
	}

	var resolver *secrets.Resolver
	for _, f := range fields {
		if !secrets.HasReference(*f.value) {
			continue
		}
		if resolver == nil {
			r, err := newSecretResolver(cfg.Security.SecretsDir)
			if err != nil {
				return err
			}
			resolver = r
		}

		resolved, err := resolver.Resolve(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = resolved
	}
	return nil
}

func newSecretResolver(dir string) (*secrets.Resolver, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(secrets.DefaultEnvPrefix)}
	if dir != "" {
		files, err := secrets.NewFileProvider(dir)
		if err != nil {
			return nil, fmt.Errorf("security.secrets_dir: %w", err)
		}
		providers = append(providers, files)
	}
	return secrets.NewResolver(providers...), nil
}
