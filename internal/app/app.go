// Package app wires the radar components from configuration. Both the server
// and the CLI build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/eventradar/radar/internal/api"
	"github.com/eventradar/radar/internal/auth"
	"github.com/eventradar/radar/internal/cleanup"
	"github.com/eventradar/radar/internal/config"
	"github.com/eventradar/radar/internal/database"
	"github.com/eventradar/radar/internal/digest"
	"github.com/eventradar/radar/internal/eventmanager"
	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/extraction"
	"github.com/eventradar/radar/internal/health"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/kv"
	"github.com/eventradar/radar/internal/metrics"
	"github.com/eventradar/radar/internal/notification"
	"github.com/eventradar/radar/internal/publish"
	"github.com/eventradar/radar/internal/registry"
)

// App holds the wired services.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	KV       kv.Store
	Events   eventstore.Store
	DB       *sql.DB
	Health   *health.Tracker
	Manager  *eventmanager.Manager
	Pipeline *ingestion.Pipeline
	Cleanup  *cleanup.Job
	Feeds    *publish.Feeds
	Digest   *digest.Service
	Metrics  *prometheus.Registry

	closers []func() error
}

// New builds every component from cfg. The caller must Close the result.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	reg, err := registry.Load(cfg.Pipeline.SourcesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("source registry loaded", "file", cfg.Pipeline.SourcesFile, "sources", reg.Len(), "active", len(reg.Active()))

	loc, err := time.LoadLocation(cfg.Publish.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Registry: reg, Metrics: prometheus.NewRegistry()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	a.Health = health.NewTracker(a.KV)
	a.Manager = eventmanager.NewManager(a.Events, logger)
	a.Cleanup = cleanup.NewJob(a.Events, loc, logger)

	a.Feeds = publish.NewFeeds(a.Events, publish.Config{
		CalendarName:   cfg.Publish.CalendarName,
		UIDDomain:      cfg.Publish.UIDDomain,
		Location:       loc,
		EventDuration:  cfg.Publish.EventDuration,
		Reminder:       cfg.Publish.Reminder,
		WidgetPageSize: cfg.Publish.WidgetPageSize,
	}, logger)
	a.Feeds.SetSourceZones(reg.Zones())

	if err := a.buildPipeline(loc); err != nil {
		return nil, err
	}

	sink, alerts := notifiers(cfg.Notify, logger)
	a.Digest = digest.NewService(reg, a.Health, a.Manager, a.Feeds, sink, alerts, logger)

	if err := a.Metrics.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	ok = true
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config.Store

	if cfg.RedisAddr != "" {
		rs := kv.NewRedisStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rs.Close)
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.KV = rs
		a.Logger.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		a.KV = kv.NewMemoryStore()
		a.Logger.Warn("no redis configured, health and kv-backed events are kept in memory")
	}

	switch cfg.Backend {
	case "postgres":
		db, err := database.Connect(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.DB = db
		a.Logger.Info("database connected")

		if err := database.RunMigrations(ctx, db, cfg.MigrationsDir, a.Logger); err != nil {
			a.Logger.Warn("failed to run migrations, continuing anyway", "error", err)
		}
		a.Events = database.NewPostgresEventStore(db)
	default:
		a.Events = eventstore.NewKVStore(a.KV)
	}
	a.Logger.Info("event store ready", "backend", cfg.Backend)
	return nil
}

func (a *App) buildPipeline(loc *time.Location) error {
	cfg := a.Config

	var completer extraction.Completer
	openaiCfg := extraction.DefaultOpenAIConfig()
	openaiCfg.APIKey = cfg.AI.APIKey
	openaiCfg.BaseURL = cfg.AI.BaseURL
	openaiCfg.Model = cfg.AI.Model
	openaiCfg.Temperature = cfg.AI.Temperature
	openaiCfg.MaxTokens = cfg.AI.MaxTokens
	openaiCfg.Timeout = cfg.AI.Timeout
	oc, err := extraction.NewOpenAICompleter(openaiCfg, a.Logger)
	if err != nil {
		a.Logger.Warn("extraction collaborator not configured, runs will find no events", "error", err)
		completer = extraction.NoopCompleter{}
	} else {
		a.Logger.Info("using OpenAI extraction", "model", openaiCfg.Model)
		completer = oc
	}

	engine := extraction.NewEngine(extraction.NewLLMExtractor(completer), extraction.EngineConfig{
		MaxContentChars: cfg.Pipeline.MaxContentChars,
		DefaultCity:     cfg.Pipeline.DefaultCity,
		DefaultTime:     cfg.Pipeline.DefaultTime,
		MaxPastDays:     cfg.Pipeline.MaxPastDays,
		MaxFutureDays:   cfg.Pipeline.MaxFutureDays,
		Location:        loc,
	}, a.Logger)

	var renderer ingestion.Renderer
	if cfg.Render.URL != "" {
		renderer = ingestion.NewHTTPRenderer(ingestion.RenderConfig{
			BaseURL: cfg.Render.URL,
			APIKey:  cfg.Render.APIKey,
			Timeout: cfg.Render.Timeout,
		})
	} else {
		a.Logger.Warn("render service not configured, js-render sources will fail")
	}

	fetchCfg := ingestion.DefaultFetcherConfig()
	fetchCfg.UserAgent = cfg.Pipeline.UserAgent
	fetchCfg.Timeout = cfg.Pipeline.FetchTimeout
	fetchCfg.DefaultWait = cfg.Render.DefaultWait
	fetcher := ingestion.NewHTTPFetcher(fetchCfg, renderer, a.Logger)

	a.Pipeline = ingestion.NewPipeline(
		a.Registry,
		fetcher,
		engine,
		a.Events,
		a.Health,
		ingestion.NewProviderLimiter(cfg.Pipeline.ProviderDelay, 1),
		a.Logger,
		ingestion.PipelineConfig{
			Workers:        cfg.Pipeline.Workers,
			BatchDeadline:  cfg.Pipeline.BatchDeadline,
			ExtractTimeout: cfg.Pipeline.ExtractTimeout,
		},
	)

	collector, err := metrics.NewPipelineCollector(a.Metrics)
	if err != nil {
		return fmt.Errorf("register pipeline metrics: %w", err)
	}
	a.Pipeline.SetObserver(collector)
	return nil
}

// notifiers builds the digest sink and the alert channel. Without any target
// configured both fall back to the log.
func notifiers(cfg config.NotifyConfig, logger *slog.Logger) (sink, alerts notification.Notifier) {
	var alertChannels, digestChannels notification.Multi

	if cfg.WebhookURL != "" {
		alertChannels = append(alertChannels, notification.WebhookNotifier{URL: cfg.WebhookURL})
	}
	digestURL := cfg.DigestWebhookURL
	if digestURL == "" {
		digestURL = cfg.WebhookURL
	}
	if digestURL != "" {
		digestChannels = append(digestChannels, notification.WebhookNotifier{URL: digestURL})
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg := notification.TelegramNotifier{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID}
		alertChannels = append(alertChannels, tg)
		digestChannels = append(digestChannels, tg)
	}

	fallback := notification.LogNotifier{Logger: logger}
	sink, alerts = fallback, fallback
	if len(digestChannels) > 0 {
		sink = digestChannels
	}
	if len(alertChannels) > 0 {
		alerts = alertChannels
	}
	return sink, alerts
}

// Handler returns the full HTTP handler: API routes, metrics and CORS, with
// request instrumentation.
func (a *App) Handler() (http.Handler, error) {
	collector, err := metrics.NewHTTPCollectorWithRegistry(a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", collector.Handler())

	authCfg := auth.Config{
		JWTSecret:         a.Config.Auth.JWTSecret,
		AdminEmail:        a.Config.Auth.AdminEmail,
		AdminPasswordHash: a.Config.Auth.AdminPasswordHash,
		TokenDuration:     a.Config.Auth.TokenDuration,
	}
	if authCfg.JWTSecret == "" || authCfg.AdminPasswordHash == "" {
		a.Logger.Warn("admin login disabled, set ADMIN_JWT_SECRET and ADMIN_PASSWORD_HASH")
	}

	api.SetupRoutes(mux, api.Dependencies{
		Feeds:   a.Feeds,
		Reviews: a.Manager,
		Runs:    a.Pipeline,
		Cleanup: a.Cleanup,
		Sources: a.Registry,
		Health:  a.Health,
		Digest:  a.Digest,
		Store:   a,
	}, authCfg, a.Logger)

	return collector.InstrumentHandler(api.CORS(mux)), nil
}

// Ping checks the backing stores.
func (a *App) Ping(ctx context.Context) error {
	if err := a.KV.Ping(ctx); err != nil {
		return fmt.Errorf("kv: %w", err)
	}
	if a.DB != nil {
		if err := database.HealthCheck(ctx, a.DB); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// Close releases store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
