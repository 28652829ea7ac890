package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"roastline-hq/roastline/pkg/limits/storage"
)

// ErrUnknownKey is returned when writing a key that is not a known setting.
var ErrUnknownKey = errors.New("unknown setting")

// Backend is the persistence the Store needs.
type Backend interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) (bool, error)
	SeedSettings(ctx context.Context, settings []storage.Setting) error
	ListSettings(ctx context.Context) ([]storage.Setting, error)
}

// Store is the database-backed settings store. Reads go straight to the
// database so admin edits apply to the next request.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// NewStore creates a settings store.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "settings.store"),
	}
}

// Seed inserts every known setting with its default value. Existing values
// are left untouched.
func (s *Store) Seed(ctx context.Context) error {
	seed := make([]storage.Setting, 0, len(Definitions))
	for _, def := range Definitions {
		seed = append(seed, storage.Setting{
			Key:         def.Key,
			Value:       def.Default,
			Description: def.Description,
		})
	}

	if err := s.backend.SeedSettings(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// Get implements Reader.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	return s.backend.GetSetting(ctx, key)
}

// Set validates and stores a new value for a known key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	def, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	value = strings.TrimSpace(value)
	if err := validateValue(def, value); err != nil {
		return err
	}

	updated, err := s.backend.SetSetting(ctx, key, value)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: %s has not been seeded", ErrUnknownKey, key)
	}

	s.logger.Info("setting updated", "key", key, "value", value)
	return nil
}

// All returns every stored setting ordered by key.
func (s *Store) All(ctx context.Context) ([]storage.Setting, error) {
	return s.backend.ListSettings(ctx)
}

func validateValue(def Definition, value string) error {
	switch def.Kind {
	case KindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", def.Key, value)
		}
		if n < 0 {
			return fmt.Errorf("%s must not be negative", def.Key)
		}
	case KindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number, got %q", def.Key, value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%s must be a finite number, got %q", def.Key, value)
		}
		if f < 0 {
			return fmt.Errorf("%s must not be negative", def.Key)
		}
	case KindBool:
		if value != "true" && value != "false" {
			return fmt.Errorf("%s must be true or false, got %q", def.Key, value)
		}
	case KindString:
		if value == "" {
			return fmt.Errorf("%s cannot be empty", def.Key)
		}
	}
	return nil
}
