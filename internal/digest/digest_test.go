package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eventradar/radar/internal/logging"
	"github.com/eventradar/radar/internal/models"
	"github.com/eventradar/radar/internal/notification"
)

type staticCatalog []models.SourceDescriptor

func (c staticCatalog) All() []models.SourceDescriptor { return c }

type staticHealth []models.HealthRecord

func (h staticHealth) List(context.Context, []models.SourceDescriptor) ([]models.HealthRecord, error) {
	return h, nil
}

type staticCounts map[models.ReviewStatus]int

func (c staticCounts) CountByStatus(context.Context) (map[models.ReviewStatus]int, error) {
	return c, nil
}

type staticUpcoming int

func (u staticUpcoming) Upcoming(context.Context) ([]models.StoredEvent, error) {
	return make([]models.StoredEvent, int(u)), nil
}

type recordingNotifier struct {
	messages []notification.Message
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func testService(records staticHealth, sink, alerts notification.Notifier) *Service {
	s := NewService(
		staticCatalog{{Name: "a"}, {Name: "b"}},
		records,
		staticCounts{models.StatusPending: 4, models.StatusApproved: 7, models.StatusRejected: 1},
		staticUpcoming(5),
		sink, alerts, logging.Discard())
	s.now = func() time.Time { return time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestSendDigestWithFailingSource(t *testing.T) {
	success := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
	records := staticHealth{
		{Source: "a", Active: true, Status: models.HealthHealthy, LastSuccess: &success, Found7d: 12, Added7d: 3},
		{Source: "b", Active: true, Status: models.HealthFailing, LastError: "fetch b: status 503"},
	}
	sink := &recordingNotifier{}
	alerts := &recordingNotifier{}

	r, err := testService(records, sink, alerts).Send(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Failing) != 1 || r.Upcoming != 5 {
		t.Errorf("unexpected report: %+v", r)
	}

	if len(sink.messages) != 1 {
		t.Fatalf("expected one digest, got %d", len(sink.messages))
	}
	body := sink.messages[0].Body
	for _, want := range []string{"4 pending, 7 approved, 1 rejected", "Upcoming published: 5", "Failing sources:", "b: fetch b: status 503 (last success never)", "found7d=12"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected digest to contain %q, got:\n%s", want, body)
		}
	}

	if len(alerts.messages) != 1 || alerts.messages[0].Event != notification.EventSourceFailing {
		t.Fatalf("expected one failing alert, got %+v", alerts.messages)
	}
	if !strings.Contains(alerts.messages[0].Body, "never succeeded") {
		t.Errorf("unexpected alert body: %s", alerts.messages[0].Body)
	}
}

func TestSendDigestHealthyNoAlert(t *testing.T) {
	records := staticHealth{{Source: "a", Active: true, Status: models.HealthHealthy}}
	sink := &recordingNotifier{}
	alerts := &recordingNotifier{}

	if _, err := testService(records, sink, alerts).Send(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts.messages) != 0 {
		t.Errorf("expected no alert, got %d", len(alerts.messages))
	}
	if strings.Contains(sink.messages[0].Body, "Failing sources") {
		t.Error("expected no failing section")
	}
}

func TestSendDigestSinkError(t *testing.T) {
	sink := &recordingNotifier{err: errors.New("webhook down")}
	_, err := testService(staticHealth{}, sink, nil).Send(context.Background())
	if err == nil || !strings.Contains(err.Error(), "webhook down") {
		t.Errorf("expected sink error, got %v", err)
	}
}
