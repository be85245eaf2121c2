package eventstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/eventradar/radar/internal/models"
)

// encode flattens an event into hash fields. Only the explicit status is
// written; legacy review flags are never produced.
func encode(ev models.StoredEvent) map[string]string {
	fields := map[string]string{
		"id":        ev.ID,
		"title":     ev.Title,
		"date":      ev.Date,
		"source":    ev.Source,
		"status":    string(ev.Status),
		"createdAt": ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	optional := map[string]string{
		"time":            ev.Time,
		"location":        ev.Location,
		"city":            ev.City,
		"category":        ev.Category,
		"description":     ev.Description,
		"detailUrl":       ev.DetailURL,
		"registrationUrl": ev.RegistrationURL,
		"thumbnail":       ev.Thumbnail,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	if ev.ApprovedAt != nil {
		fields["approvedAt"] = ev.ApprovedAt.UTC().Format(time.RFC3339Nano)
	}
	if ev.RejectedAt != nil {
		fields["rejectedAt"] = ev.RejectedAt.UTC().Format(time.RFC3339Nano)
	}
	if ev.Status == "" {
		fields["status"] = string(models.StatusPending)
	}
	return fields
}

// decode rebuilds an event from hash fields, resolving legacy review flags.
func decode(id string, fields map[string]string) (models.StoredEvent, error) {
	ev := models.StoredEvent{
		ID:              id,
		Title:           fields["title"],
		Date:            fields["date"],
		Time:            fields["time"],
		Location:        fields["location"],
		City:            fields["city"],
		Category:        fields["category"],
		Description:     fields["description"],
		DetailURL:       fields["detailUrl"],
		RegistrationURL: fields["registrationUrl"],
		Thumbnail:       fields["thumbnail"],
		Source:          fields["source"],
	}

	var legacy *models.LegacyReview
	_, hasReviewed := fields["reviewed"]
	_, hasRejected := fields["rejected"]
	if hasReviewed || hasRejected {
		legacy = &models.LegacyReview{
			Reviewed: models.ParseLegacyFlag(fields["reviewed"]),
			Rejected: models.ParseLegacyFlag(fields["rejected"]),
		}
	}
	ev.Status = models.DeriveStatus(fields["status"], legacy)

	var err error
	if ev.CreatedAt, err = parseTime(fields["createdAt"]); err != nil {
		return ev, fmt.Errorf("event %s createdAt: %w", id, err)
	}
	if raw := fields["approvedAt"]; raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return ev, fmt.Errorf("event %s approvedAt: %w", id, err)
		}
		ev.ApprovedAt = &t
	}
	if raw := fields["rejectedAt"]; raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return ev, fmt.Errorf("event %s rejectedAt: %w", id, err)
		}
		ev.RejectedAt = &t
	}
	return ev, nil
}

// parseTime accepts RFC 3339 and unix milliseconds, which older records use.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
