package publish

import (
	"context"
	"encoding/json"

	"github.com/eventradar/radar/internal/models"
)

// MinWidgetEvents is the smallest set the carousel can show.
const MinWidgetEvents = 2

// WidgetEvent is the public projection of an approved event.
type WidgetEvent struct {
	ID              string `json:"id"`
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

// WidgetPage is one page of the widget feed. When ShowWidget is false it
// serializes as {"events": [], "showWidget": false}.
type WidgetPage struct {
	Events     []WidgetEvent
	HasMore    bool
	Total      int
	Page       int
	ShowWidget bool
}

// MarshalJSON writes the paginated shape or the hidden-widget shape.
func (p WidgetPage) MarshalJSON() ([]byte, error) {
	events := p.Events
	if events == nil {
		events = []WidgetEvent{}
	}
	if !p.ShowWidget {
		return json.Marshal(struct {
			Events     []WidgetEvent `json:"events"`
			ShowWidget bool          `json:"showWidget"`
		}{Events: []WidgetEvent{}, ShowWidget: false})
	}
	return json.Marshal(struct {
		Events     []WidgetEvent `json:"events"`
		HasMore    bool          `json:"hasMore"`
		Total      int           `json:"total"`
		Page       int           `json:"page"`
		ShowWidget bool          `json:"showWidget"`
	}{events, p.HasMore, p.Total, p.Page, true})
}

// Widget returns page (1-based) of the widget feed. Store failures degrade to
// the hidden-widget response.
func (f *Feeds) Widget(ctx context.Context, page int) WidgetPage {
	events, err := f.Upcoming(ctx)
	if err != nil {
		f.logger.Error("widget feed degraded to empty", "error", err)
		return WidgetPage{}
	}
	return Paginate(events, page, f.config.WidgetPageSize)
}

// Paginate applies the minimum-count gate and slices one page.
func Paginate(events []models.StoredEvent, page, size int) WidgetPage {
	if len(events) < MinWidgetEvents {
		return WidgetPage{}
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultConfig().WidgetPageSize
	}

	out := WidgetPage{Total: len(events), Page: page, ShowWidget: true, Events: []WidgetEvent{}}
	if page-1 > (len(events)-1)/size {
		return out
	}
	start := (page - 1) * size
	end := start + size
	if end > len(events) {
		end = len(events)
	}
	for _, ev := range events[start:end] {
		out.Events = append(out.Events, project(ev))
	}
	out.HasMore = end < len(events)
	return out
}

func project(ev models.StoredEvent) WidgetEvent {
	return WidgetEvent{
		ID:              ev.ID,
		Title:           ev.Title,
		Date:            ev.Date,
		Time:            ev.Time,
		Location:        ev.Location,
		City:            ev.City,
		Category:        ev.Category,
		Description:     ev.Description,
		DetailURL:       ev.DetailURL,
		RegistrationURL: ev.RegistrationURL,
		Thumbnail:       ev.Thumbnail,
	}
}
