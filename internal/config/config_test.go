package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Store.Backend)
	}
	if cfg.Pipeline.MaxPastDays != 90 || cfg.Pipeline.MaxFutureDays != 365 {
		t.Errorf("unexpected sanity window: past=%d future=%d", cfg.Pipeline.MaxPastDays, cfg.Pipeline.MaxFutureDays)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Publish.Timezone != "UTC" {
		t.Errorf("expected UTC timezone, got %q", cfg.Publish.Timezone)
	}
	if !cfg.Schedule.Enabled {
		t.Error("expected schedule enabled by default")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                     "9090",
		"SERVER_READ_TIMEOUT_SECONDS":     "30",
		"LOG_LEVEL":                       "DEBUG",
		"LOG_FORMAT":                      "text",
		"STORE_BACKEND":                   "redis",
		"REDIS_DB":                        "2",
		"PIPELINE_WORKERS":                "8",
		"PIPELINE_BATCH_DEADLINE_SECONDS": "600",
		"RADAR_TIMEZONE":                  "Europe/Berlin",
		"CALENDAR_REMINDER_MINUTES":       "30",
		"WIDGET_PAGE_SIZE":                "10",
		"SCHEDULE_ENABLED":                "false",
		"OPENAI_TEMPERATURE":              "0.5",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected overridden port, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level %v, got %v", slog.LevelDebug, cfg.Logging.Level)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisDB != 2 || cfg.Store.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.BatchDeadline != 10*time.Minute {
		t.Errorf("expected 10m deadline, got %v", cfg.Pipeline.BatchDeadline)
	}
	if cfg.Publish.Timezone != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %q", cfg.Publish.Timezone)
	}
	if cfg.Publish.Reminder != 30*time.Minute {
		t.Errorf("expected 30m reminder, got %v", cfg.Publish.Reminder)
	}
	if cfg.Publish.WidgetPageSize != 10 {
		t.Errorf("expected page size 10, got %d", cfg.Publish.WidgetPageSize)
	}
	if cfg.Schedule.Enabled {
		t.Error("expected schedule disabled")
	}
	if cfg.AI.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %v", cfg.AI.Temperature)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":      "-1",
		"PIPELINE_WORKERS":                 "0",
		"REDIS_DB":                         "abc",
		"STORE_BACKEND":                    "mongo",
		"RADAR_TIMEZONE":                   "Mars/Olympus",
		"LOG_LEVEL":                        "verbose",
		"LOG_FORMAT":                       "xml",
		"SCHEDULE_ENABLED":                 "sometimes",
		"ADMIN_TOKEN_HOURS":                "0",
		"PIPELINE_FETCH_TIMEOUT_SECONDS":   "0",
		"PIPELINE_EXTRACT_TIMEOUT_SECONDS": "0",
		"OPENAI_TIMEOUT_SECONDS":           "0",
		"RENDER_TIMEOUT_SECONDS":           "0",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/radar?sslmode=disable")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}

		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS", "SERVER_WRITE_TIMEOUT_SECONDS", "SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL", "LOG_FORMAT",
		"STORE_BACKEND", "REDIS_ADDR", "REDIS_DB", "DATABASE_URL",
		"PIPELINE_WORKERS", "PIPELINE_BATCH_DEADLINE_SECONDS",
		"PIPELINE_FETCH_TIMEOUT_SECONDS", "PIPELINE_EXTRACT_TIMEOUT_SECONDS", "OPENAI_TIMEOUT_SECONDS", "RENDER_TIMEOUT_SECONDS",
		"RADAR_TIMEZONE", "CALENDAR_REMINDER_MINUTES", "WIDGET_PAGE_SIZE",
		"SCHEDULE_ENABLED", "OPENAI_TEMPERATURE", "ADMIN_TOKEN_HOURS",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}
