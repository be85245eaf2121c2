package models

import (
	"strconv"
	"strings"
	"time"
)

// ReviewStatus is the explicit review lifecycle state of a stored event.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// Valid reports whether s is a known review status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ReviewAction is an admin-triggered transition.
type ReviewAction string

const (
	ActionApprove  ReviewAction = "approve"
	ActionReject   ReviewAction = "reject"
	ActionUnreview ReviewAction = "unreview"
)

// ParseReviewAction validates an action name from an admin request.
func ParseReviewAction(raw string) (ReviewAction, error) {
	switch a := ReviewAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionApprove, ActionReject, ActionUnreview:
		return a, nil
	}
	return "", Invalidf("unknown review action %q", raw)
}

// LegacyReview is the old two-boolean encoding of the review state. It is
// only ever read; records are written back with an explicit status.
type LegacyReview struct {
	Reviewed bool
	Rejected bool
}

// Status maps the boolean pair to a review status. Rejected wins over
// reviewed, reviewed alone means approved.
func (l LegacyReview) Status() ReviewStatus {
	switch {
	case l.Rejected:
		return StatusRejected
	case l.Reviewed:
		return StatusApproved
	default:
		return StatusPending
	}
}

// ParseLegacyFlag reads a stored boolean ("true", "1", "yes").
func ParseLegacyFlag(raw string) bool {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "yes" {
		return true
	}
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}

// DeriveStatus resolves the canonical status from whatever representation a
// record carries. When both forms are present the stronger state wins:
// rejected, then approved, then pending.
func DeriveStatus(raw string, legacy *LegacyReview) ReviewStatus {
	status := ReviewStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		status = StatusPending
	}
	if legacy == nil {
		return status
	}
	fromLegacy := legacy.Status()
	if status == StatusRejected || fromLegacy == StatusRejected {
		return StatusRejected
	}
	if status == StatusApproved || fromLegacy == StatusApproved {
		return StatusApproved
	}
	return StatusPending
}

// ApplyReview performs a transition on a copy of e and reports whether any
// field changed. Repeating a transition is a no-op.
func ApplyReview(e StoredEvent, action ReviewAction, now time.Time) (StoredEvent, bool) {
	now = now.UTC()
	next := e

	switch action {
	case ActionApprove:
		next.Status = StatusApproved
		if e.Status != StatusApproved || next.ApprovedAt == nil {
			next.ApprovedAt = &now
		}
		next.RejectedAt = nil
	case ActionReject:
		next.Status = StatusRejected
		if e.Status != StatusRejected || next.RejectedAt == nil {
			next.RejectedAt = &now
		}
	case ActionUnreview:
		next.Status = StatusPending
		next.ApprovedAt = nil
		next.RejectedAt = nil
	default:
		return e, false
	}

	changed := next.Status != e.Status ||
		!sameTime(next.ApprovedAt, e.ApprovedAt) ||
		!sameTime(next.RejectedAt, e.RejectedAt)
	return next, changed
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
