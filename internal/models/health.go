package models

import "time"

// HealthStatus is the read-time classification of a source.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthFailing  HealthStatus = "failing"
	HealthInactive HealthStatus = "inactive"
	HealthUnknown  HealthStatus = "unknown"
)

const (
	// FailingAfter is how stale the last success may be before a recorded
	// error marks the source as failing.
	FailingAfter = 24 * time.Hour
	// DegradedAfter is how stale the last success may be before the source is
	// considered degraded.
	DegradedAfter = 72 * time.Hour
)

// HealthRecord is the per-source health view. Status is never persisted.
type HealthRecord struct {
	Source      string       `json:"source"`
	Active      bool         `json:"active"`
	LastSuccess *time.Time   `json:"lastSuccess,omitempty"`
	LastError   string       `json:"lastError,omitempty"`
	LastErrorAt *time.Time   `json:"lastErrorAt,omitempty"`
	LastRunAt   *time.Time   `json:"lastRunAt,omitempty"`
	Found7d     int64        `json:"found7d"`
	Added7d     int64        `json:"added7d"`
	Status      HealthStatus `json:"status"`
}

// ClassifyHealth derives the health status from the last success, the
// recorded error and the active flag.
func ClassifyHealth(active bool, lastSuccess *time.Time, lastError string, now time.Time) HealthStatus {
	if !active {
		return HealthInactive
	}
	if lastSuccess == nil && lastError == "" {
		return HealthUnknown
	}
	if lastError != "" && (lastSuccess == nil || now.Sub(*lastSuccess) > FailingAfter) {
		return HealthFailing
	}
	if lastSuccess != nil && now.Sub(*lastSuccess) > DegradedAfter {
		return HealthDegraded
	}
	return HealthHealthy
}

// Classify fills in Status from the record's own fields.
func (h *HealthRecord) Classify(now time.Time) {
	h.Status = ClassifyHealth(h.Active, h.LastSuccess, h.LastError, now)
}
