package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStoredEvent_CompletenessScore(t *testing.T) {
	tests := []struct {
		name     string
		event    StoredEvent
		expected int
	}{
		{"empty", StoredEvent{}, 0},
		{"title and date", StoredEvent{Title: "Flea market", Date: "2026-06-01"}, 6},
		{"core fields", StoredEvent{Title: "a", Date: "2026-06-01", Time: "10:00", Location: "Town square"}, 12},
		{
			name: "everything",
			event: StoredEvent{
				Title: "a", Date: "2026-06-01", Time: "10:00", Location: "Town square",
				Description: "d", Category: "market", DetailURL: "https://x", RegistrationURL: "https://y", City: "Leipzig",
			},
			expected: 17,
		},
		{"whitespace does not count", StoredEvent{Title: "a", Date: "2026-06-01", Location: "   "}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.CompletenessScore(); got != tt.expected {
				t.Errorf("CompletenessScore() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestStoredEvent_Published(t *testing.T) {
	today := "2026-06-01"
	tests := []struct {
		name     string
		event    StoredEvent
		expected bool
	}{
		{"approved today", StoredEvent{Date: "2026-06-01", Status: StatusApproved}, true},
		{"approved future", StoredEvent{Date: "2026-07-01", Status: StatusApproved}, true},
		{"approved past", StoredEvent{Date: "2026-05-31", Status: StatusApproved}, false},
		{"pending future", StoredEvent{Date: "2026-07-01", Status: StatusPending}, false},
		{"rejected future", StoredEvent{Date: "2026-07-01", Status: StatusRejected}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Published(today); got != tt.expected {
				t.Errorf("Published() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewStoredEventStartsPending(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	ev := NewStoredEvent("abc", "library", CandidateEvent{Title: "Reading", Date: "2026-06-02"}, now)

	if ev.Status != StatusPending {
		t.Fatalf("expected pending, got %v", ev.Status)
	}
	if ev.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC createdAt, got %v", ev.CreatedAt.Location())
	}
	if ev.ApprovedAt != nil || ev.RejectedAt != nil {
		t.Fatal("expected no review timestamps")
	}
}

func TestToday(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("timezone database unavailable")
	}
	now := time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC)
	if got := Today(now, berlin); got != "2026-06-02" {
		t.Errorf("Today() = %q, want 2026-06-02", got)
	}
	if got := Today(now, nil); got != "2026-06-01" {
		t.Errorf("Today(nil) = %q, want 2026-06-01", got)
	}
}

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"fetch", &FetchError{Source: "s", StatusCode: 503, Err: errors.New("unavailable")}, CategoryFetch},
		{"wrapped extraction", fmt.Errorf("run: %w", &ExtractionError{Source: "s", Err: errors.New("bad json")}), CategoryExtraction},
		{"store", &StoreError{Op: "upsert", Err: errors.New("conn refused")}, CategoryStore},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), CategoryNotFound},
		{"plain", errors.New("boom"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCategory(tt.err); got != tt.expected {
				t.Errorf("ErrorCategory() = %q, want %q", got, tt.expected)
			}
		})
	}
}
