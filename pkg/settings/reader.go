package settings

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Reader is the read side of the settings store.
type Reader interface {
	// Get returns the raw value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
}

// Static is a fixed in-memory Reader.
type Static map[string]string

// Get implements Reader.
func (s Static) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

// String returns the value of key, or def when absent.
func String(ctx context.Context, r Reader, key, def string) (string, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Int returns key parsed as an integer, or def when absent or malformed.
func Int(ctx context.Context, r Reader, key string, def int) (int, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		// Accept "10.0" written by hand into the admin form.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil {
			slog.Warn("malformed integer setting, using default", "key", key, "value", v, "default", def)
			return def, nil
		}
		return int(f), nil
	}
	return n, nil
}

// Float returns key parsed as a float, or def when absent or malformed.
func Float(ctx context.Context, r Reader, key string, def float64) (float64, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		slog.Warn("malformed numeric setting, using default", "key", key, "value", v, "default", def)
		return def, nil
	}
	return f, nil
}

// Bool reports whether key holds exactly "true". Absent keys use def.
func Bool(ctx context.Context, r Reader, key string, def bool) (bool, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return def, nil
	}
	return v == "true", nil
}
