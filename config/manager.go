package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Manager is a small key/value configuration store consulted by
// New() for environment overrides; New does not load a JSON file,
// though LoadFromJSON is available to other callers. Values are keyed by
// dot-separated paths ("sql.host"); environment variables map onto
// them with underscores ("SQL_HOST").
type Manager struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{values: make(map[string]interface{})}
}

// Set stores value under key, overwriting any prior value.
func (m *Manager) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Get looks up key directly, returning whether it was present.
func (m *Manager) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// GetString returns key's value coerced to a string, or the first
// default argument (or "") if key is absent or not a string.
func (m *Manager) GetString(key string, fallback ...string) string {
	if v, ok := m.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// GetInt returns key's value coerced to an int from any of int,
// int64, float64, or a parseable string, falling back otherwise.
func (m *Manager) GetInt(key string, fallback ...int) int {
	if v, ok := m.Get(key); ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i
			}
		}
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return 0
}

// GetBool returns key's value coerced to a bool. A string is true for
// "true", "yes", or "1" and false for any other string; an int is true
// when non-zero. Any other type, or an absent key, falls through to
// the default.
func (m *Manager) GetBool(key string, fallback ...bool) bool {
	if v, ok := m.Get(key); ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return b == "true" || b == "yes" || b == "1"
		case int:
			return b != 0
		}
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return false
}

// LoadFromEnv scans os.Environ for keys under prefix (or every
// variable, if prefix is empty), strips the prefix, lower-cases the
// remainder, and replaces underscores with dots before storing it:
// SQL_HOST becomes sql.host.
func (m *Manager) LoadFromEnv(prefix string) {
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			name = strings.TrimPrefix(strings.TrimPrefix(name, prefix), "_")
		}
		key := strings.ReplaceAll(strings.ToLower(name), "_", ".")
		m.Set(key, value)
	}
}

// LoadFromJSON reads filename as JSON and stores its contents,
// flattening nested objects into dot-separated keys.
func (m *Manager) LoadFromJSON(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	m.storeFlattened("", values)
	return nil
}

// storeFlattened walks a decoded JSON object, joining each path of
// keys with dots and calling Set once it reaches a non-object value.
func (m *Manager) storeFlattened(prefix string, values map[string]interface{}) {
	for key, value := range values {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			m.storeFlattened(full, nested)
			continue
		}
		m.Set(full, value)
	}
}
