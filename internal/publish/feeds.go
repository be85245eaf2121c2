// Package publish serves approved upcoming events to the public calendar and
// widget feeds.
package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventradar/radar/internal/eventmanager"
	"github.com/eventradar/radar/internal/eventstore"
	"github.com/eventradar/radar/internal/models"
)

// Config shapes both feeds.
type Config struct {
	CalendarName   string
	UIDDomain      string
	Location       *time.Location
	EventDuration  time.Duration
	Reminder       time.Duration
	WidgetPageSize int
}

// DefaultConfig returns the feed defaults.
func DefaultConfig() Config {
	return Config{
		CalendarName:   "Event Radar",
		UIDDomain:      "eventradar.local",
		Location:       time.UTC,
		EventDuration:  2 * time.Hour,
		Reminder:       time.Hour,
		WidgetPageSize: 6,
	}
}

// Feeds reads the event store for the public surfaces.
type Feeds struct {
	store  eventstore.Store
	config Config
	zones  map[string]*time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewFeeds creates the publication layer.
func NewFeeds(store eventstore.Store, config Config, logger *slog.Logger) *Feeds {
	def := DefaultConfig()
	if config.Location == nil {
		config.Location = def.Location
	}
	if config.EventDuration <= 0 {
		config.EventDuration = def.EventDuration
	}
	if config.WidgetPageSize <= 0 {
		config.WidgetPageSize = def.WidgetPageSize
	}
	if config.UIDDomain == "" {
		config.UIDDomain = def.UIDDomain
	}
	return &Feeds{store: store, config: config, zones: map[string]*time.Location{}, logger: logger, now: time.Now}
}

// SetSourceZones registers per-source timezones. Events from sources not
// listed use the feed location.
func (f *Feeds) SetSourceZones(zones map[string]*time.Location) {
	f.zones = zones
}

func (f *Feeds) zoneFor(source string) *time.Location {
	if loc, ok := f.zones[source]; ok && loc != nil {
		return loc
	}
	return f.config.Location
}

// Upcoming returns approved events dated today or later, sorted by start.
func (f *Feeds) Upcoming(ctx context.Context) ([]models.StoredEvent, error) {
	events, err := eventstore.LoadAll(ctx, f.store)
	if err != nil {
		return nil, err
	}

	today := models.Today(f.now(), f.config.Location)
	out := make([]models.StoredEvent, 0, len(events))
	for _, ev := range events {
		if ev.Published(today) {
			out = append(out, ev)
		}
	}
	eventmanager.SortByStart(out)
	return out, nil
}
