package secrets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver tries its providers in order.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver over providers.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// GetSecret returns the first value any provider has for name. Errors other
// than ErrNotFound stop the search.
func (r *Resolver) GetSecret(ctx context.Context, name string) (string, error) {
	for _, p := range r.providers {
		value, err := p.GetSecret(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s provider: %w", p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Resolve replaces every ${secret:name} in input. Unresolved references are
// left in place and reported together in the returned error.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	var failures []string

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(secretRefRegex.FindStringSubmatch(match)[1])
		value, err := r.GetSecret(ctx, name)
		if err != nil {
			failures = append(failures, err.Error())
			return match
		}
		return value
	})

	if len(failures) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(failures, "; "))
	}
	return output, nil
}

// HasReference reports whether s contains a ${secret:...} reference.
func HasReference(s string) bool {
	return secretRefRegex.MatchString(s)
}
