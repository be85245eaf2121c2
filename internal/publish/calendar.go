package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/eventradar/radar/internal/models"
)

const productID = "-//eventradar//radar//EN"

// Calendar renders the iCalendar document. On a store failure it logs and
// returns a valid calendar without events.
func (f *Feeds) Calendar(ctx context.Context) string {
	events, err := f.Upcoming(ctx)
	if err != nil {
		f.logger.Error("calendar feed degraded to empty", "error", err)
		events = nil
	}
	return f.RenderCalendar(events)
}

// RenderCalendar serializes events. Timed events are written in UTC,
// computed from the wall-clock time in the source's zone; events without a
// time become all-day entries.
func (f *Feeds) RenderCalendar(events []models.StoredEvent) string {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(f.config.CalendarName)
	cal.SetXWRTimezone(f.config.Location.String())

	stamp := f.now().UTC()
	for _, ev := range events {
		f.addEvent(cal, ev, stamp)
	}
	return cal.Serialize()
}

func (f *Feeds) addEvent(cal *ics.Calendar, ev models.StoredEvent, stamp time.Time) {
	day, err := time.ParseInLocation(models.DateLayout, ev.Date, f.zoneFor(ev.Source))
	if err != nil {
		f.logger.Warn("skipping event with bad date", "event_id", ev.ID, "date", ev.Date)
		return
	}

	vevent := cal.AddEvent(UID(ev.ID, f.config.UIDDomain))
	vevent.SetDtStampTime(stamp)
	vevent.SetCreatedTime(ev.CreatedAt)
	if ev.ApprovedAt != nil {
		vevent.SetModifiedAt(*ev.ApprovedAt)
	}

	if start, ok := startTime(day, ev.Time); ok {
		vevent.SetStartAt(start)
		vevent.SetEndAt(start.Add(f.config.EventDuration))
	} else {
		vevent.SetAllDayStartAt(day)
		vevent.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	vevent.SetSummary(ev.Title)
	if loc := joinLocation(ev.Location, ev.City); loc != "" {
		vevent.SetLocation(loc)
	}
	if desc := describe(ev); desc != "" {
		vevent.SetDescription(desc)
	}
	if ev.DetailURL != "" {
		vevent.SetURL(ev.DetailURL)
	}
	if ev.Category != "" {
		vevent.SetProperty(ics.ComponentPropertyCategories, ev.Category)
	}

	if f.config.Reminder > 0 {
		alarm := vevent.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", int(f.config.Reminder.Minutes())))
		alarm.SetProperty(ics.ComponentPropertyDescription, ev.Title)
	}
}

// UID is the stable calendar identifier of a stored event.
func UID(id, domain string) string {
	return id + "@" + domain
}

func startTime(day time.Time, clock string) (time.Time, bool) {
	if clock == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.TimeLayout, clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), true
}

func joinLocation(location, city string) string {
	switch {
	case location == "":
		return city
	case city == "" || strings.Contains(strings.ToLower(location), strings.ToLower(city)):
		return location
	default:
		return location + ", " + city
	}
}

func describe(ev models.StoredEvent) string {
	parts := make([]string, 0, 3)
	if ev.Description != "" {
		parts = append(parts, ev.Description)
	}
	if ev.RegistrationURL != "" {
		parts = append(parts, "Registration: "+ev.RegistrationURL)
	}
	if ev.DetailURL != "" {
		parts = append(parts, ev.DetailURL)
	}
	return strings.Join(parts, "\n\n")
}
