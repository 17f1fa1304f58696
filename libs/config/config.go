package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML file that is read before the environment.
// Environment variables always take precedence over file values.
const ConfigFileEnv = "CONFIG_FILE"

var (
	once    sync.Once
	v       *viper.Viper
	fileErr error
)

func store() *viper.Viper {
	once.Do(func() {
		v = viper.New()
		v.AutomaticEnv()
		if path := strings.TrimSpace(v.GetString(ConfigFileEnv)); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				fileErr = fmt.Errorf("read %s %q: %w", ConfigFileEnv, path, err)
				slog.Warn("config file ignored", "path", path, "err", err)
			}
		}
	})
	return v
}

// Load reads the environment and the optional config file. It reports a
// file that was named but could not be read or parsed; lookups still work
// from the environment when it does.
func Load() error {
	store()
	return fileErr
}

// Reset drops the cached store so the next lookup re-reads env and file.
func Reset() {
	once = sync.Once{}
	v = nil
	fileErr = nil
}

func String(key, fallback string) string {
	s := strings.TrimSpace(store().GetString(key))
	if s == "" {
		return fallback
	}
	return s
}

func RequiredString(key string) (string, error) {
	s := strings.TrimSpace(store().GetString(key))
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func Port(key, fallback string) (string, error) {
	s := String(key, fallback)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, s)
	}
	return s, nil
}

// Int returns fallback when the value is missing or not a positive integer.
func Int(key string, fallback int) int {
	n, err := strconv.Atoi(String(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(String(key, "")) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

// Duration accepts Go duration strings ("90s") or a bare number of seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	s := String(key, "")
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return fallback
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// List splits a comma separated value, dropping empty items.
func List(key, fallback string) []string {
	raw := String(key, fallback)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
