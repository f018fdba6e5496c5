package config

import (
	"strconv"
	"strings"

	"github.com/accessio/accessio/pkg/xerrors"
)

// FromMap decodes a backend's map[string]string configuration (spec §6)
// into strongly-typed fields via the getter methods below, raising
// ConfigInvalid for a missing required key or a value that fails to
// parse — the same failure mode the teacher's parseSize silently
// defaults around, but made explicit since a backend configuration
// error should fail fast rather than mask a typo with a default.
type FromMap struct {
	scheme string
	values map[string]string
}

func NewFromMap(scheme string, values map[string]string) *FromMap {
	return &FromMap{scheme: scheme, values: values}
}

func (m *FromMap) invalid(key, reason string) error {
	return xerrors.Newf(xerrors.KindConfigInvalid, "%s: %s: %s", m.scheme, key, reason).
		WithContext("scheme", m.scheme).WithContext("key", key)
}

// Require returns the raw string value for key, or ConfigInvalid if
// absent.
func (m *FromMap) Require(key string) (string, error) {
	v, ok := m.values[key]
	if !ok || v == "" {
		return "", m.invalid(key, "required key missing")
	}
	return v, nil
}

// Optional returns the raw string value for key, or def if absent.
func (m *FromMap) Optional(key, def string) string {
	if v, ok := m.values[key]; ok && v != "" {
		return v
	}
	return def
}

// RequireInt parses key as a base-10 integer.
func (m *FromMap) RequireInt(key string) (int64, error) {
	raw, err := m.Require(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, m.invalid(key, "not a valid integer")
	}
	return n, nil
}

// OptionalInt parses key as a base-10 integer, or returns def if absent.
func (m *FromMap) OptionalInt(key string, def int64) (int64, error) {
	raw, ok := m.values[key]
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, m.invalid(key, "not a valid integer")
	}
	return n, nil
}

// OptionalBool parses key as a boolean ("true"/"false"), or returns def
// if absent.
func (m *FromMap) OptionalBool(key string, def bool) (bool, error) {
	raw, ok := m.values[key]
	if !ok || raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, m.invalid(key, "not a valid boolean")
	}
	return b, nil
}

// OptionalSize parses a human-readable size ("512MB", "2GiB", "1024")
// into bytes, or returns def if absent.
func (m *FromMap) OptionalSize(key string, def int64) (int64, error) {
	raw, ok := m.values[key]
	if !ok || raw == "" {
		return def, nil
	}
	n, err := ParseSize(raw)
	if err != nil {
		return 0, m.invalid(key, err.Error())
	}
	return n, nil
}

// ParseSize parses a human-readable byte size like "512MB", "2GiB", or a
// bare number of bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"GIB", 1024 * 1024 * 1024},
		{"MIB", 1024 * 1024},
		{"KIB", 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			numStr := strings.TrimSuffix(s, u.suffix)
			n, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, xerrors.New(xerrors.KindInvalidInput, "malformed size value: "+s)
			}
			return int64(n * float64(u.multiplier)), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, xerrors.New(xerrors.KindInvalidInput, "malformed size value: "+s)
	}
	return n, nil
}
