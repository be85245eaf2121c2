// Package api exposes the public feeds and the admin HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/eventradar/radar/internal/auth"
	"github.com/eventradar/radar/internal/cleanup"
	"github.com/eventradar/radar/internal/digest"
	"github.com/eventradar/radar/internal/eventmanager"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/models"
	"github.com/eventradar/radar/internal/publish"
)

// FeedService renders the public feeds.
type FeedService interface {
	Calendar(ctx context.Context) string
	Widget(ctx context.Context, page int) publish.WidgetPage
}

// ReviewService applies review actions and serves admin listings.
type ReviewService interface {
	Apply(ctx context.Context, action models.ReviewAction, ids []string) (int, error)
	Get(ctx context.Context, id string) (models.StoredEvent, error)
	List(ctx context.Context, f eventmanager.Filter) ([]models.StoredEvent, error)
}

// RunService triggers extraction runs.
type RunService interface {
	RunAll(ctx context.Context) (*ingestion.RunReport, error)
	RunSources(ctx context.Context, names []string) (*ingestion.RunReport, error)
}

// CleanupService plans and executes store compaction.
type CleanupService interface {
	Run(ctx context.Context, opts cleanup.Options) (cleanup.Result, error)
}

// SourceCatalog lists the registered sources.
type SourceCatalog interface {
	All() []models.SourceDescriptor
}

// HealthLister reports source health.
type HealthLister interface {
	List(ctx context.Context, descs []models.SourceDescriptor) ([]models.HealthRecord, error)
}

// DigestBuilder assembles the digest preview.
type DigestBuilder interface {
	Build(ctx context.Context) (digest.Report, error)
}

// Pinger checks a backing store for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the services the routes are served from.
type Dependencies struct {
	Feeds   FeedService
	Reviews ReviewService
	Runs    RunService
	Cleanup CleanupService
	Sources SourceCatalog
	Health  HealthLister
	Digest  DigestBuilder
	Store   Pinger
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, deps Dependencies, authConfig auth.Config, logger *slog.Logger) {
	feeds := NewFeedHandler(deps.Feeds, deps.Store, logger)
	admin := NewAdminHandler(deps, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	requireAdmin := auth.AdminMiddleware(authConfig, func(w http.ResponseWriter, msg string) {
		writeError(w, logger, http.StatusUnauthorized, models.CategoryValidation, msg)
	})
	protect := func(h http.HandlerFunc) http.Handler {
		return requireAdmin(h)
	}

	// Public
	mux.HandleFunc("GET /healthz", feeds.Healthz)
	mux.HandleFunc("GET /feeds/events.ics", feeds.Calendar)
	mux.HandleFunc("GET /feeds/widget", feeds.Widget)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Admin
	mux.Handle("POST /api/admin/events/review", protect(admin.Review))
	mux.Handle("GET /api/admin/events", protect(admin.ListEvents))
	mux.Handle("GET /api/admin/events/{id}", protect(admin.GetEvent))
	mux.Handle("POST /api/admin/runs", protect(admin.Run))
	mux.Handle("POST /api/admin/cleanup", protect(admin.Cleanup))
	mux.Handle("GET /api/admin/sources", protect(admin.Sources))
	mux.Handle("GET /api/admin/digest", protect(admin.Digest))
}

// CORS answers preflight requests and sets the CORS headers the admin UI and
// embedding sites need.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
