// Package digest builds the weekly source-health report and raises alerts
// for failing sources.
package digest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/eventradar/radar/internal/models"
	"github.com/eventradar/radar/internal/notification"
)

// Catalog lists the registered sources.
type Catalog interface {
	All() []models.SourceDescriptor
}

// HealthLister returns classified health for descriptors.
type HealthLister interface {
	List(ctx context.Context, descs []models.SourceDescriptor) ([]models.HealthRecord, error)
}

// StatusCounter tallies stored events by review status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.ReviewStatus]int, error)
}

// UpcomingLister returns the published events.
type UpcomingLister interface {
	Upcoming(ctx context.Context) ([]models.StoredEvent, error)
}

// Report is the digest content.
type Report struct {
	GeneratedAt time.Time                   `json:"generatedAt"`
	Sources     []models.HealthRecord       `json:"sources"`
	Counts      map[models.ReviewStatus]int `json:"counts"`
	Upcoming    int                         `json:"upcoming"`
	Failing     []models.HealthRecord       `json:"failing"`
	Degraded    []models.HealthRecord       `json:"degraded"`
}

// Service assembles and delivers digests.
type Service struct {
	catalog  Catalog
	health   HealthLister
	counter  StatusCounter
	upcoming UpcomingLister
	sink     notification.Notifier
	alerts   notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a digest service. sink receives the digest, alerts the
// failing-source notice; either may be nil to skip that delivery.
func NewService(catalog Catalog, health HealthLister, counter StatusCounter, upcoming UpcomingLister,
	sink, alerts notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		health:   health,
		counter:  counter,
		upcoming: upcoming,
		sink:     sink,
		alerts:   alerts,
		logger:   logger,
		now:      time.Now,
	}
}

// Build collects the report without sending anything.
func (s *Service) Build(ctx context.Context) (Report, error) {
	records, err := s.health.List(ctx, s.catalog.All())
	if err != nil {
		return Report{}, fmt.Errorf("source health: %w", err)
	}
	counts, err := s.counter.CountByStatus(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("event counts: %w", err)
	}
	upcoming, err := s.upcoming.Upcoming(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("upcoming events: %w", err)
	}

	r := Report{
		GeneratedAt: s.now().UTC(),
		Sources:     records,
		Counts:      counts,
		Upcoming:    len(upcoming),
	}
	for _, rec := range records {
		switch rec.Status {
		case models.HealthFailing:
			r.Failing = append(r.Failing, rec)
		case models.HealthDegraded:
			r.Degraded = append(r.Degraded, rec)
		}
	}
	return r, nil
}

// Send builds the digest, delivers it to the sink and, when any source is
// failing, sends a separate alert.
func (s *Service) Send(ctx context.Context) (Report, error) {
	r, err := s.Build(ctx)
	if err != nil {
		return r, err
	}
	body, err := Render(r)
	if err != nil {
		return r, err
	}

	var sendErr error
	if s.sink != nil {
		if err := s.sink.Send(ctx, notification.Message{
			Event:   notification.EventDigest,
			Subject: fmt.Sprintf("Event radar digest %s", r.GeneratedAt.Format(models.DateLayout)),
			Body:    body,
		}); err != nil {
			sendErr = fmt.Errorf("send digest: %w", err)
		}
	}

	if len(r.Failing) > 0 && s.alerts != nil {
		if err := s.alerts.Send(ctx, FailingAlert(r.Failing)); err != nil {
			s.logger.Error("failing-source alert not delivered", "error", err)
			if sendErr == nil {
				sendErr = fmt.Errorf("send alert: %w", err)
			}
		}
	}

	s.logger.Info("digest sent",
		"sources", len(r.Sources),
		"failing", len(r.Failing),
		"degraded", len(r.Degraded),
		"upcoming", r.Upcoming)
	return r, sendErr
}

// FailingAlert formats the out-of-band notice for failing sources.
func FailingAlert(failing []models.HealthRecord) notification.Message {
	var b strings.Builder
	for _, rec := range failing {
		fmt.Fprintf(&b, "- %s: %s", rec.Source, rec.LastError)
		if rec.LastSuccess != nil {
			fmt.Fprintf(&b, " (last success %s)", rec.LastSuccess.Format(time.RFC3339))
		} else {
			b.WriteString(" (never succeeded)")
		}
		b.WriteString("\n")
	}
	return notification.Message{
		Event:   notification.EventSourceFailing,
		Subject: fmt.Sprintf("%d event source(s) failing", len(failing)),
		Body:    strings.TrimRight(b.String(), "\n"),
	}
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"stamp": func(t *time.Time) string {
		if t == nil {
			return "never"
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
}).Parse(`Event radar digest, {{.GeneratedAt.Format "2006-01-02"}}

Events: {{.Pending}} pending, {{.Approved}} approved, {{.Rejected}} rejected
Upcoming published: {{.Upcoming}}
{{if .Failing}}
Failing sources:
{{range .Failing}}  - {{.Source}}: {{.LastError}} (last success {{stamp .LastSuccess}})
{{end}}{{end}}{{if .Degraded}}
Degraded sources:
{{range .Degraded}}  - {{.Source}} (last success {{stamp .LastSuccess}})
{{end}}{{end}}
Sources:
{{range .Sources}}  {{printf "%-9s" .Status}} {{.Source}}  found7d={{.Found7d}} added7d={{.Added7d}} last_success={{stamp .LastSuccess}}
{{end}}`))

// Render produces the plain-text digest.
func Render(r Report) (string, error) {
	view := struct {
		Report
		Pending, Approved, Rejected int
	}{
		Report:   r,
		Pending:  r.Counts[models.StatusPending],
		Approved: r.Counts[models.StatusApproved],
		Rejected: r.Counts[models.StatusRejected],
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}
