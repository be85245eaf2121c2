package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// FeedHandler serves the public calendar and widget feeds.
type FeedHandler struct {
	feeds  FeedService
	store  Pinger
	logger *slog.Logger
}

// NewFeedHandler creates the public feed handler.
func NewFeedHandler(feeds FeedService, store Pinger, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feeds: feeds, store: store, logger: logger}
}

// Healthz handles GET /healthz
func (h *FeedHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// Calendar handles GET /feeds/events.ics
func (h *FeedHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	body := h.feeds.Calendar(r.Context())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Error("failed to write calendar", "error", err)
	}
}

// Widget handles GET /feeds/widget?page=N. Missing or malformed pages fall
// back to the first page.
func (h *FeedHandler) Widget(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, h.logger, http.StatusOK, h.feeds.Widget(r.Context(), page))
}
