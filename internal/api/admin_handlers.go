package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eventradar/radar/internal/cleanup"
	"github.com/eventradar/radar/internal/digest"
	"github.com/eventradar/radar/internal/eventmanager"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/models"
)

// AdminHandler serves the authenticated admin routes.
type AdminHandler struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(deps Dependencies, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: logger}
}

// ReviewRequest is the body of a bulk review action.
type ReviewRequest struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
}

// ReviewResponse reports how many records the action processed.
type ReviewResponse struct {
	Updated int `json:"updated"`
}

// Review handles POST /api/admin/events/review
func (h *AdminHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, h.logger, "invalid request body")
		return
	}
	action, err := models.ParseReviewAction(req.Action)
	if err != nil {
		badRequest(w, h.logger, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		badRequest(w, h.logger, "ids must not be empty")
		return
	}

	updated, err := h.deps.Reviews.Apply(r.Context(), action, req.IDs)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.logger.Info("review applied", "action", action, "requested", len(req.IDs), "updated", updated)
	writeJSON(w, h.logger, http.StatusOK, ReviewResponse{Updated: updated})
}

// EventsResponse is the admin listing.
type EventsResponse struct {
	Events []models.StoredEvent `json:"events"`
	Count  int                  `json:"count"`
}

// ListEvents handles GET /api/admin/events?status=&date=
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := eventmanager.Filter{
		Status: models.ReviewStatus(strings.ToLower(q.Get("status"))),
		Date:   q.Get("date"),
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(w, h.logger, "status must be pending, approved or rejected")
		return
	}
	if f.Date != "" {
		if _, err := time.Parse(models.DateLayout, f.Date); err != nil {
			badRequest(w, h.logger, "date must be YYYY-MM-DD")
			return
		}
	}

	events, err := h.deps.Reviews.List(r.Context(), f)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []models.StoredEvent{}
	}
	writeJSON(w, h.logger, http.StatusOK, EventsResponse{Events: events, Count: len(events)})
}

// GetEvent handles GET /api/admin/events/{id}
func (h *AdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.deps.Reviews.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ev)
}

// RunRequest selects the sources of a manual run.
type RunRequest struct {
	Sources []string `json:"sources"`
	All     bool     `json:"all"`
}

// Run handles POST /api/admin/runs. The run outlives a disconnected client.
func (h *AdminHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, h.logger, "invalid request body")
		return
	}
	if req.All == (len(req.Sources) > 0) {
		badRequest(w, h.logger, "set either all or sources")
		return
	}

	// A full run may exceed the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	ctx := context.WithoutCancel(r.Context())
	var (
		rep *ingestion.RunReport
		err error
	)
	if req.All {
		rep, err = h.deps.Runs.RunAll(ctx)
	} else {
		rep, err = h.deps.Runs.RunSources(ctx, req.Sources)
	}
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rep)
}

// Cleanup handles POST /api/admin/cleanup?dry_run=true|false. Runs are dry
// unless dry_run=false is given.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	dryRun := true
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(w, h.logger, "dry_run must be true or false")
			return
		}
		dryRun = v
	}

	res, err := h.deps.Cleanup.Run(r.Context(), cleanup.Options{DryRun: dryRun})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

// SourceView is one registry entry with its health.
type SourceView struct {
	models.SourceDescriptor
	Health models.HealthRecord `json:"health"`
}

// Sources handles GET /api/admin/sources
func (h *AdminHandler) Sources(w http.ResponseWriter, r *http.Request) {
	descs := h.deps.Sources.All()
	records, err := h.deps.Health.List(r.Context(), descs)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	byName := make(map[string]models.HealthRecord, len(records))
	for _, rec := range records {
		byName[rec.Source] = rec
	}
	out := make([]SourceView, 0, len(descs))
	for _, d := range descs {
		out = append(out, SourceView{SourceDescriptor: d, Health: byName[d.Name]})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"sources": out, "count": len(out)})
}

// DigestResponse is the digest preview.
type DigestResponse struct {
	Report digest.Report `json:"report"`
	Text   string        `json:"text"`
}

// Digest handles GET /api/admin/digest. Nothing is sent.
func (h *AdminHandler) Digest(w http.ResponseWriter, r *http.Request) {
	rep, err := h.deps.Digest.Build(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	text, err := digest.Render(rep)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, DigestResponse{Report: rep, Text: text})
}
