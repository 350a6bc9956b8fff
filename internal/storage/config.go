package storage

import (
	"strconv"
	"strings"
	"time"
)

// Config holds backend settings as flat string pairs, e.g. "auth_url" or
// "timeout". Keys are matched case-insensitively.
type Config map[string]string

// ParseConfig reads "key=value" pairs separated by ';' or ','.
func ParseConfig(s string) Config {
	cfg := Config{}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		cfg[strings.ToLower(key)] = strings.TrimSpace(value)
	}
	return cfg
}

func (c Config) lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	if v, ok := c[key]; ok {
		return v, true
	}
	lower := strings.ToLower(key)
	for k, v := range c {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return "", false
}

// String returns the value for key or def when unset or blank.
func (c Config) String(key, def string) string {
	v, ok := c.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// Int returns the integer value for key or def when unset or unparsable.
func (c Config) Int(key string, def int) int {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Int64 returns the 64-bit integer value for key or def.
func (c Config) Int64(key string, def int64) int64 {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the boolean value for key or def.
func (c Config) Bool(key string, def bool) bool {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Duration returns the value for key as a duration. Bare integers are read
// as milliseconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
