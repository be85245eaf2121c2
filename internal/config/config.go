package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Store    StoreConfig
	Pipeline PipelineConfig
	AI       AIConfig
	Render   RenderConfig
	Publish  PublishConfig
	Notify   NotifyConfig
	Auth     AuthConfig
	Schedule ScheduleConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// StoreConfig selects and configures the event store backend.
type StoreConfig struct {
	Backend       string // memory, redis, postgres
	RedisAddr     string // also backs health counters when set
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	MigrationsDir string
}

// PipelineConfig tunes the extraction batch run.
type PipelineConfig struct {
	SourcesFile     string
	Workers         int
	BatchDeadline   time.Duration
	FetchTimeout    time.Duration
	ExtractTimeout  time.Duration
	ProviderDelay   time.Duration
	DefaultCity     string
	DefaultTime     string
	MaxPastDays     int
	MaxFutureDays   int
	MaxContentChars int
	UserAgent       string
}

// AIConfig configures the text-extraction collaborator.
type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// RenderConfig configures the JavaScript rendering collaborator.
type RenderConfig struct {
	URL         string
	APIKey      string
	DefaultWait time.Duration
	Timeout     time.Duration
}

// PublishConfig shapes the public feeds.
type PublishConfig struct {
	Timezone       string
	CalendarName   string
	UIDDomain      string
	EventDuration  time.Duration
	Reminder       time.Duration
	WidgetPageSize int
}

// NotifyConfig holds the digest and alert delivery targets.
type NotifyConfig struct {
	WebhookURL       string
	DigestWebhookURL string
	TelegramToken    string
	TelegramChatID   string
}

// AuthConfig holds admin authentication parameters.
type AuthConfig struct {
	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

// ScheduleConfig holds cron expressions (with seconds field) for periodic jobs.
type ScheduleConfig struct {
	Enabled    bool
	Extraction string
	Cleanup    string
	Digest     string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Store: StoreConfig{
			Backend:       getEnv("STORE_BACKEND", "memory"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Pipeline: PipelineConfig{
			SourcesFile:     getEnv("RADAR_SOURCES_FILE", "sources.yaml"),
			Workers:         4,
			BatchDeadline:   20 * time.Minute,
			FetchTimeout:    45 * time.Second,
			ExtractTimeout:  90 * time.Second,
			ProviderDelay:   2 * time.Second,
			DefaultCity:     os.Getenv("RADAR_DEFAULT_CITY"),
			DefaultTime:     os.Getenv("RADAR_DEFAULT_TIME"),
			MaxPastDays:     90,
			MaxFutureDays:   365,
			MaxContentChars: 15000,
			UserAgent:       getEnv("RADAR_USER_AGENT", "EventRadarBot/1.0 (+https://github.com/eventradar/radar)"),
		},
		AI: AIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: 0.1,
			MaxTokens:   4000,
			Timeout:     90 * time.Second,
		},
		Render: RenderConfig{
			URL:         os.Getenv("RENDER_URL"),
			APIKey:      os.Getenv("RENDER_API_KEY"),
			DefaultWait: 3 * time.Second,
			Timeout:     60 * time.Second,
		},
		Publish: PublishConfig{
			Timezone:       getEnv("RADAR_TIMEZONE", "UTC"),
			CalendarName:   getEnv("CALENDAR_NAME", "Event Radar"),
			UIDDomain:      getEnv("CALENDAR_UID_DOMAIN", "eventradar.local"),
			EventDuration:  2 * time.Hour,
			Reminder:       time.Hour,
			WidgetPageSize: 6,
		},
		Notify: NotifyConfig{
			WebhookURL:       os.Getenv("ALERT_WEBHOOK_URL"),
			DigestWebhookURL: os.Getenv("DIGEST_WEBHOOK_URL"),
			TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
			TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
			AdminEmail:        getEnv("ADMIN_EMAIL", "admin@localhost"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration:     24 * time.Hour,
		},
		Schedule: ScheduleConfig{
			Enabled:    true,
			Extraction: getEnv("SCHEDULE_EXTRACTION", "0 0 5 * * *"),
			Cleanup:    getEnv("SCHEDULE_CLEANUP", "0 30 3 * * *"),
			Digest:     getEnv("SCHEDULE_DIGEST", "0 0 8 * * MON"),
		},
	}

	durations := []struct {
		key string
		dst *time.Duration
		min int
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout, 0},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout, 0},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout, 0},
		{"PIPELINE_BATCH_DEADLINE_SECONDS", &cfg.Pipeline.BatchDeadline, 0},
		{"PIPELINE_FETCH_TIMEOUT_SECONDS", &cfg.Pipeline.FetchTimeout, 1},
		{"PIPELINE_EXTRACT_TIMEOUT_SECONDS", &cfg.Pipeline.ExtractTimeout, 1},
		{"PIPELINE_PROVIDER_DELAY_SECONDS", &cfg.Pipeline.ProviderDelay, 0},
		{"OPENAI_TIMEOUT_SECONDS", &cfg.AI.Timeout, 1},
		{"RENDER_WAIT_SECONDS", &cfg.Render.DefaultWait, 0},
		{"RENDER_TIMEOUT_SECONDS", &cfg.Render.Timeout, 1},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := parseSeconds(v, d.min)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
		min int
	}{
		{"REDIS_DB", &cfg.Store.RedisDB, 0},
		{"PIPELINE_WORKERS", &cfg.Pipeline.Workers, 1},
		{"PIPELINE_MAX_PAST_DAYS", &cfg.Pipeline.MaxPastDays, 0},
		{"PIPELINE_MAX_FUTURE_DAYS", &cfg.Pipeline.MaxFutureDays, 1},
		{"PIPELINE_MAX_CONTENT_CHARS", &cfg.Pipeline.MaxContentChars, 1},
		{"OPENAI_MAX_TOKENS", &cfg.AI.MaxTokens, 1},
		{"WIDGET_PAGE_SIZE", &cfg.Publish.WidgetPageSize, 1},
	}
	for _, i := range ints {
		v := os.Getenv(i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < i.min {
			return Config{}, fmt.Errorf("invalid %s: must be an integer >= %d", i.key, i.min)
		}
		*i.dst = n
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
		}
		cfg.AI.Temperature = float32(temp)
	}

	if v := os.Getenv("CALENDAR_EVENT_DURATION_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CALENDAR_EVENT_DURATION_MINUTES: %w", err)
		}
		cfg.Publish.EventDuration = d
	}

	if v := os.Getenv("CALENDAR_REMINDER_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CALENDAR_REMINDER_MINUTES: %w", err)
		}
		cfg.Publish.Reminder = d
	}

	if v := os.Getenv("ADMIN_TOKEN_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_HOURS: must be a positive integer")
		}
		cfg.Auth.TokenDuration = time.Duration(hours) * time.Hour
	}

	if v := os.Getenv("SCHEDULE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULE_ENABLED: %w", err)
		}
		cfg.Schedule.Enabled = enabled
	}

	switch cfg.Store.Backend {
	case "memory", "redis", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND: must be 'memory', 'redis' or 'postgres'")
	}
	if cfg.Store.Backend == "redis" && cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = "localhost:6379"
	}
	if cfg.Store.Backend == "postgres" && cfg.Store.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}

	if _, err := time.LoadLocation(cfg.Publish.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid RADAR_TIMEZONE: %w", err)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(strings.ToLower(v))
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string, atLeast int) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < atLeast {
		return 0, fmt.Errorf("must be an integer >= %d", atLeast)
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMinutes(raw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
