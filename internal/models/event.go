package models

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for event dates and indexes.
const DateLayout = "2006-01-02"

// TimeLayout is the 24-hour clock format used for event start times.
const TimeLayout = "15:04"

// CandidateEvent is an unvalidated, unpersisted extraction result.
type CandidateEvent struct {
	Title           string `json:"title"`
	Date            string `json:"date"`
	Time            string `json:"time,omitempty"`
	Location        string `json:"location,omitempty"`
	City            string `json:"city,omitempty"`
	Category        string `json:"category,omitempty"`
	Description     string `json:"description,omitempty"`
	DetailURL       string `json:"detailUrl,omitempty"`
	RegistrationURL string `json:"registrationUrl,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
}

// StoredEvent is the durable form of an event owned by the event store.
type StoredEvent struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Date            string       `json:"date"`
	Time            string       `json:"time,omitempty"`
	Location        string       `json:"location,omitempty"`
	City            string       `json:"city,omitempty"`
	Category        string       `json:"category,omitempty"`
	Description     string       `json:"description,omitempty"`
	DetailURL       string       `json:"detailUrl,omitempty"`
	RegistrationURL string       `json:"registrationUrl,omitempty"`
	Thumbnail       string       `json:"thumbnail,omitempty"`
	Source          string       `json:"source"`
	Status          ReviewStatus `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
	ApprovedAt      *time.Time   `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time   `json:"rejectedAt,omitempty"`
}

// NewStoredEvent turns an accepted candidate into a pending record.
func NewStoredEvent(id, source string, c CandidateEvent, now time.Time) StoredEvent {
	return StoredEvent{
		ID:              id,
		Title:           c.Title,
		Date:            c.Date,
		Time:            c.Time,
		Location:        c.Location,
		City:            c.City,
		Category:        c.Category,
		Description:     c.Description,
		DetailURL:       c.DetailURL,
		RegistrationURL: c.RegistrationURL,
		Thumbnail:       c.Thumbnail,
		Source:          source,
		Status:          StatusPending,
		CreatedAt:       now.UTC(),
	}
}

// Day parses the event date. The zero time is returned for malformed dates.
func (e StoredEvent) Day() time.Time {
	d, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}
	}
	return d
}

// IsUpcoming reports whether the event date is today or later.
func (e StoredEvent) IsUpcoming(today string) bool {
	return e.Date >= today
}

// Published reports whether the event belongs in the public feeds.
func (e StoredEvent) Published(today string) bool {
	return e.Status == StatusApproved && e.IsUpcoming(today)
}

// CompletenessScore weighs populated fields to pick a survivor among
// duplicates. Core fields are worth 3 points, supplementary fields 1.
func (e StoredEvent) CompletenessScore() int {
	score := 0
	for _, v := range []string{e.Title, e.Date, e.Time, e.Location} {
		if strings.TrimSpace(v) != "" {
			score += 3
		}
	}
	for _, v := range []string{e.Description, e.Category, e.DetailURL, e.RegistrationURL, e.City} {
		if strings.TrimSpace(v) != "" {
			score++
		}
	}
	return score
}

// Today formats the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
