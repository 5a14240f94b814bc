// Package config loads the application settings artifact: a required YAML
// file holding nested key/value sections, overlaid with values from .env
// files and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrLoad wraps every failure to read or parse the settings source.
var ErrLoad = errors.New("config: settings load failed")

// EnvPrefix is the prefix for environment variables that override
// settings keys: IGNITION_LOGGING_LEVEL overrides "logging.level".
const EnvPrefix = "IGNITION_"

// Settings is a read-only handle onto one section of the configuration
// tree. The zero-section returned for an absent name is empty but valid,
// so lookups can be chained without nil checks:
//
//	level := cfg.Section("logging").String("level", "info")
type Settings struct {
	values map[string]any
	// path is the dotted location of this section in the tree, used for
	// env-var override lookups.
	path string
}

// Load reads the settings file at path into a Settings tree.
// The file is required: a missing or malformed file is a fatal load
// error. envFiles are loaded first via godotenv and are optional, as a
// .env may not exist in production; after that, IGNITION_-prefixed
// environment variables override individual keys.
func Load(path string, envFiles ...string) (*Settings, error) {
	// Non-fatal: .env may not exist in production
	if len(envFiles) > 0 {
		_ = godotenv.Load(envFiles...)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLoad, path, err)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrLoad, path, err)
	}

	return &Settings{values: values}, nil
}

// FromMap builds a Settings handle from an in-memory tree. Used by tests
// and by callers that assemble configuration programmatically.
func FromMap(values map[string]any) *Settings {
	if values == nil {
		values = make(map[string]any)
	}
	return &Settings{values: values}
}

// Section returns the named child section. Absent or non-map sections
// yield an empty, valid Settings.
func (s *Settings) Section(name string) *Settings {
	child := &Settings{values: map[string]any{}, path: s.childPath(name)}
	raw, ok := s.values[name]
	if !ok {
		return child
	}
	switch m := raw.(type) {
	case map[string]any:
		child.values = m
	case map[any]any:
		// yaml.v3 normally decodes string keys, but nested documents
		// unmarshalled into any can still carry this shape.
		converted := make(map[string]any, len(m))
		for k, v := range m {
			converted[fmt.Sprint(k)] = v
		}
		child.values = converted
	}
	return child
}

// Has reports whether key is present in this section or overridden via
// the environment.
func (s *Settings) Has(key string) bool {
	if _, ok := s.envOverride(key); ok {
		return true
	}
	_, ok := s.values[key]
	return ok
}

// Keys returns the keys present in this section. Order is unspecified.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// String returns the string value for key, falling back when absent.
func (s *Settings) String(key, fallback string) string {
	if v, ok := s.envOverride(key); ok {
		return v
	}
	raw, ok := s.values[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case string:
		return v
	case nil:
		return fallback
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer value for key, falling back when absent or
// not parseable as an integer.
func (s *Settings) Int(key string, fallback int) int {
	if v, ok := s.envOverride(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		return fallback
	}
	switch v := s.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// Bool returns the boolean value for key, falling back when absent or
// not parseable as a boolean.
func (s *Settings) Bool(key string, fallback bool) bool {
	if v, ok := s.envOverride(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return fallback
	}
	switch v := s.values[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// StringSlice returns the list value for key, or nil when absent.
// Environment overrides use a comma-separated form.
func (s *Settings) StringSlice(key string) []string {
	if v, ok := s.envOverride(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	switch v := s.values[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// StringMap returns the nested section under key flattened to
// string → string, or nil when absent.
func (s *Settings) StringMap(key string) map[string]string {
	section := s.Section(key)
	if len(section.values) == 0 {
		return nil
	}
	out := make(map[string]string, len(section.values))
	for k := range section.values {
		out[k] = section.String(k, "")
	}
	return out
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *Settings) childPath(name string) string {
	if s.path == "" {
		return name
	}
	return s.path + "." + name
}

// envOverride looks up the IGNITION_-prefixed environment variable for a
// dotted key, e.g. "logging.level" → IGNITION_LOGGING_LEVEL.
func (s *Settings) envOverride(key string) (string, bool) {
	dotted := key
	if s.path != "" {
		dotted = s.path + "." + key
	}
	name := EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(dotted))
	v, ok := os.LookupEnv(name)
	return v, ok && v != ""
}
