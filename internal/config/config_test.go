package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpfile.Close()
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeTempConfig(t, `
environment: development
port: 8081
debug: true
database:
  type: sqlite
  dsn: dash.db
rate_limit:
  classes:
    strict:
      max_requests: 2
      window: 30s
`)
		config, warning, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if warning != "" {
			t.Errorf("Expected no warning, got %q", warning)
		}
		if config.Port != 8081 {
			t.Errorf("Expected port 8081, got %d", config.Port)
		}
		if !config.Debug {
			t.Error("Expected debug to be true")
		}
		if config.Env() != Development {
			t.Errorf("Expected development environment, got %s", config.Env())
		}
		strict := config.RateLimit.Classes["strict"]
		if strict.MaxRequests != 2 || strict.Window != 30*time.Second {
			t.Errorf("Expected strict class override, got %+v", strict)
		}
		if config.RateLimit.Classes["default"].MaxRequests != 30 {
			t.Errorf("Expected default class to keep its default, got %+v", config.RateLimit.Classes["default"])
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeTempConfig(t, "database:\n  type: sqlite\n  dsn: dash.db\n")
		config, warning, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if config.Env() != Production {
			t.Errorf("Expected production by default, got %s", config.Env())
		}
		if warning == "" {
			t.Error("Expected a warning about the missing environment")
		}
		if config.RateLimit.SweepInterval != 5*time.Minute {
			t.Errorf("Expected 5m sweep interval, got %s", config.RateLimit.SweepInterval)
		}
		if config.Storage.MaxUploadBytes != 5<<20 {
			t.Errorf("Expected 5 MiB upload ceiling, got %d", config.Storage.MaxUploadBytes)
		}
		if config.RateLimit.Backend != "memory" {
			t.Errorf("Expected memory backend, got %s", config.RateLimit.Backend)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		path := writeTempConfig(t, "port: 8080\n")
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error, but got nil")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeTempConfig(t, "database: [sqlite\n  port: 8080")
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error for invalid YAML, but got nil")
		}
	})

	t.Run("invalid rate class", func(t *testing.T) {
		path := writeTempConfig(t, `
database: {type: sqlite, dsn: dash.db}
rate_limit:
  classes:
    default:
      max_requests: 0
      window: 1m
`)
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error for a zero budget class")
		}
	})

	t.Run("redis backend requires address", func(t *testing.T) {
		path := writeTempConfig(t, `
database: {type: sqlite, dsn: dash.db}
rate_limit: {backend: redis}
`)
		if _, _, err := LoadConfig(path); err == nil {
			t.Error("Expected an error without redis.addr")
		}
	})
}

func TestParseEnvironment(t *testing.T) {
	cases := map[string]Environment{
		"development": Development,
		" DEV ":       Development,
		"production":  Production,
		"":            Production,
		"staging":     Production,
	}
	for in, want := range cases {
		if got := ParseEnvironment(in); got != want {
			t.Errorf("ParseEnvironment(%q) = %s, want %s", in, got, want)
		}
	}
}
