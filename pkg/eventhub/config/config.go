package config

import (
	"maps"
	"strconv"
	"time"
)

// Config is a decoded settings document. Accessors fall back to the
// supplied default when a key is missing or cannot be read as the
// requested type. Values that arrive as strings, as they do from the
// environment, are parsed.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map is an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// String returns key as a string.
func (c Config) String(key, def string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return def
}

// Duration returns key as a duration. Strings use time.ParseDuration;
// bare numbers, in a file or a string, are milliseconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c.data[key].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v * float64(time.Millisecond))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

// Int returns key as an int. Floats with a fractional part are rejected.
func (c Config) Int(key string, def int) int {
	switch v := c.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Sub returns the section nested under key, or an empty Config.
func (c Config) Sub(key string) Config {
	switch v := c.data[key].(type) {
	case map[string]any:
		return New(v)
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			if s, ok := k.(string); ok {
				m[s] = val
			}
		}
		return New(m)
	}
	return New(nil)
}

// Merge returns a Config with over's keys laid on top of c's. Sections
// present in both are merged recursively; c is not modified.
func (c Config) Merge(over Config) Config {
	out := maps.Clone(c.data)
	for k, v := range over.data {
		if _, nested := v.(map[string]any); nested {
			if _, exists := out[k]; exists {
				out[k] = c.Sub(k).Merge(over.Sub(k)).data
				continue
			}
		}
		out[k] = v
	}
	return New(out)
}

// Len returns the number of top-level keys.
func (c Config) Len() int {
	return len(c.data)
}
