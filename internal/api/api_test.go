package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventradar/radar/internal/auth"
	"github.com/eventradar/radar/internal/cleanup"
	"github.com/eventradar/radar/internal/digest"
	"github.com/eventradar/radar/internal/eventmanager"
	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/health"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/kv"
	"github.com/eventradar/radar/internal/logging"
	"github.com/eventradar/radar/internal/models"
	"github.com/eventradar/radar/internal/publish"
	"github.com/eventradar/radar/internal/registry"
)

type fakeRuns struct {
	named []string
	all   bool
	err   error
}

func (f *fakeRuns) RunAll(ctx context.Context) (*ingestion.RunReport, error) {
	f.all = true
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.RunReport{ID: "run-all"}, nil
}

func (f *fakeRuns) RunSources(ctx context.Context, names []string) (*ingestion.RunReport, error) {
	f.named = names
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.RunReport{ID: "run-named"}, nil
}

type testEnv struct {
	handler http.Handler
	store   eventstore.Store
	runs    *fakeRuns
	token   string
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func storeEvent(t *testing.T, store eventstore.Store, id, title, date string, status models.ReviewStatus) {
	t.Helper()
	ev := models.NewStoredEvent(id, "kulturhaus", models.CandidateEvent{Title: title, Date: date, Time: "19:30"}, time.Now())
	ev.Status = status
	if status == models.StatusApproved {
		now := time.Now().UTC()
		ev.ApprovedAt = &now
	}
	if err := store.Upsert(context.Background(), ev); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()

	backend := kv.NewMemoryStore()
	store := eventstore.NewKVStore(backend)
	reg, err := registry.New([]models.SourceDescriptor{
		{Name: "kulturhaus", URL: "https://kulturhaus.example/events", Strategy: models.StrategyStatic, Active: true},
		{Name: "museum", URL: "https://museum.example/api", Strategy: models.StrategyStructuredAPI},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	tracker := health.NewTracker(backend)
	manager := eventmanager.NewManager(store, logger)
	feeds := publish.NewFeeds(store, publish.DefaultConfig(), logger)
	runs := &fakeRuns{}

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	authConfig := auth.Config{
		JWTSecret:         "test-secret",
		AdminEmail:        "admin@example.org",
		AdminPasswordHash: string(hash),
		TokenDuration:     time.Hour,
	}
	token, _, err := auth.Login(authConfig, authConfig.AdminEmail, "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, Dependencies{
		Feeds:   feeds,
		Reviews: manager,
		Runs:    runs,
		Cleanup: cleanup.NewJob(store, time.UTC, logger),
		Sources: reg,
		Health:  tracker,
		Digest:  digest.NewService(reg, tracker, manager, feeds, nil, nil, logger),
		Store:   backend,
	}, authConfig, logger)

	return &testEnv{handler: CORS(mux), store: store, runs: runs, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestCalendarFeed(t *testing.T) {
	env := newTestEnv(t)
	storeEvent(t, env.store, "a1", "Jazzabend", futureDate(3), models.StatusApproved)
	storeEvent(t, env.store, "p1", "Entwurf", futureDate(4), models.StatusPending)

	rec := env.do(t, http.MethodGet, "/feeds/events.ics", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("expected text/calendar, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "SUMMARY:Jazzabend") {
		t.Errorf("expected approved event in calendar:\n%s", body)
	}
	if strings.Contains(body, "Entwurf") {
		t.Error("pending event must not be published")
	}
}

func TestWidgetFeed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/feeds/widget", nil, false)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"events":[],"showWidget":false}` {
		t.Errorf("expected hidden widget, got %s", got)
	}

	storeEvent(t, env.store, "a1", "Jazzabend", futureDate(3), models.StatusApproved)
	storeEvent(t, env.store, "a2", "Lesung", futureDate(5), models.StatusApproved)

	rec = env.do(t, http.MethodGet, "/feeds/widget?page=abc", nil, false)
	var page struct {
		Events     []publish.WidgetEvent `json:"events"`
		Total      int                   `json:"total"`
		Page       int                   `json:"page"`
		ShowWidget bool                  `json:"showWidget"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !page.ShowWidget || page.Total != 2 || page.Page != 1 || len(page.Events) != 2 {
		t.Errorf("unexpected widget page %+v", page)
	}

	rec = env.do(t, http.MethodGet, "/feeds/widget?page=9223372036854775807", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a far page, got %d", rec.Code)
	}
	page.Events = nil
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !page.ShowWidget || page.Total != 2 || len(page.Events) != 0 {
		t.Errorf("expected empty far page, got %+v", page)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: "admin@example.org", Password: "s3cret"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.Identity.Role != auth.RoleAdmin {
		t.Errorf("unexpected login response %+v", resp)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: "admin@example.org", Password: "nope"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/admin/events", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Message == "" {
		t.Error("expected error message")
	}
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	date := futureDate(2)
	storeEvent(t, env.store, "e1", "Konzert", date, models.StatusPending)
	storeEvent(t, env.store, "e2", "Flohmarkt", date, models.StatusPending)

	rec := env.do(t, http.MethodPost, "/api/admin/events/review",
		ReviewRequest{Action: "approve", IDs: []string{"e1", "e2", "missing"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ReviewResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Updated != 2 {
		t.Errorf("expected 2 updated, got %d", resp.Updated)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/events?status=approved&date="+date, nil, true)
	var list EventsResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if list.Count != 2 {
		t.Errorf("expected 2 approved events, got %d", list.Count)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/events/e1", nil, true)
	var ev models.StoredEvent
	json.NewDecoder(rec.Body).Decode(&ev)
	if ev.Status != models.StatusApproved || ev.ApprovedAt == nil {
		t.Errorf("expected approved event with timestamp, got %+v", ev)
	}
}

func TestReviewValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"unknown action", ReviewRequest{Action: "publish", IDs: []string{"e1"}}},
		{"no ids", ReviewRequest{Action: "approve"}},
		{"unknown field", map[string]interface{}{"action": "approve", "ids": []string{"x"}, "force": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/admin/events/review", tt.body, true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if e := decodeError(t, rec); e.Category != models.CategoryValidation {
				t.Errorf("expected %s, got %s", models.CategoryValidation, e.Category)
			}
		})
	}
}

func TestListEventsValidation(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/admin/events?status=archived", "/api/admin/events?date=12.03.2026"} {
		if rec := env.do(t, http.MethodGet, path, nil, true); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestGetEventNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/admin/events/nope", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Category != models.CategoryNotFound {
		t.Errorf("expected not_found, got %s", e.Category)
	}
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/runs", RunRequest{Sources: []string{"museum"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(env.runs.named) != 1 || env.runs.named[0] != "museum" {
		t.Errorf("expected named run of museum, got %v", env.runs.named)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/runs", RunRequest{All: true}, true)
	var rep ingestion.RunReport
	json.NewDecoder(rec.Body).Decode(&rep)
	if !env.runs.all || rep.ID != "run-all" {
		t.Errorf("expected full run, got %+v", rep)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/runs", RunRequest{All: true, Sources: []string{"museum"}}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for ambiguous request, got %d", rec.Code)
	}

	env.runs.err = ingestion.ErrRunInProgress
	rec = env.do(t, http.MethodPost, "/api/admin/runs", RunRequest{All: true}, true)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	env.runs.err = models.Invalidf("unknown source: %s", "ghost")
	rec = env.do(t, http.MethodPost, "/api/admin/runs", RunRequest{Sources: []string{"ghost"}}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCleanup(t *testing.T) {
	env := newTestEnv(t)
	storeEvent(t, env.store, "old", "Vergangen", time.Now().AddDate(0, 0, -3).Format(models.DateLayout), models.StatusApproved)
	storeEvent(t, env.store, "new", "Kommend", futureDate(3), models.StatusApproved)

	rec := env.do(t, http.MethodPost, "/api/admin/cleanup", nil, true)
	var res cleanup.Result
	json.NewDecoder(rec.Body).Decode(&res)
	if !res.DryRun || res.Deleted != 0 || len(res.Plan.Removals) != 1 {
		t.Fatalf("expected dry-run plan with one removal, got %+v", res)
	}
	if ok, _ := env.store.Exists(context.Background(), "old"); !ok {
		t.Fatal("dry run must not delete")
	}

	rec = env.do(t, http.MethodPost, "/api/admin/cleanup?dry_run=false", nil, true)
	json.NewDecoder(rec.Body).Decode(&res)
	if res.Deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", res.Deleted)
	}
	if ok, _ := env.store.Exists(context.Background(), "old"); ok {
		t.Error("stale event still present")
	}

	if rec := env.do(t, http.MethodPost, "/api/admin/cleanup?dry_run=maybe", nil, true); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSourcesAndDigest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/sources", nil, true)
	var sources struct {
		Sources []SourceView `json:"sources"`
		Count   int          `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sources); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sources.Count != 2 || sources.Sources[0].Name != "kulturhaus" {
		t.Fatalf("unexpected sources %+v", sources)
	}
	if sources.Sources[1].Health.Status != models.HealthInactive {
		t.Errorf("expected museum inactive, got %s", sources.Sources[1].Health.Status)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/digest", nil, true)
	var preview DigestResponse
	if err := json.NewDecoder(rec.Body).Decode(&preview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(preview.Report.Sources) != 2 || !strings.Contains(preview.Text, "kulturhaus") {
		t.Errorf("unexpected digest preview %+v", preview)
	}
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/admin/events", nil, false)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}
