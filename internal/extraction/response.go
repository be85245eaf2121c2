package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventradar/radar/internal/models"
)

// responseEvent tolerates the field spellings models drift into.
type responseEvent struct {
	Title             string `json:"title"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Location          string `json:"location"`
	Venue             string `json:"venue"`
	City              string `json:"city"`
	Category          string `json:"category"`
	Description       string `json:"description"`
	DetailURL         string `json:"detailUrl"`
	DetailURLSnake    string `json:"detail_url"`
	URL               string `json:"url"`
	RegistrationURL   string `json:"registrationUrl"`
	RegistrationSnake string `json:"registration_url"`
	Thumbnail         string `json:"thumbnail"`
	Image             string `json:"image"`
}

func (r responseEvent) candidate() models.CandidateEvent {
	return models.CandidateEvent{
		Title:           r.Title,
		Date:            r.Date,
		Time:            r.Time,
		Location:        firstNonEmpty(r.Location, r.Venue),
		City:            r.City,
		Category:        r.Category,
		Description:     r.Description,
		DetailURL:       firstNonEmpty(r.DetailURL, r.DetailURLSnake, r.URL),
		RegistrationURL: firstNonEmpty(r.RegistrationURL, r.RegistrationSnake),
		Thumbnail:       firstNonEmpty(r.Thumbnail, r.Image),
	}
}

// ParseResponse decodes a completion into candidates. It accepts the
// {"events": [...]} object, a bare array, and either wrapped in a markdown
// code fence.
func ParseResponse(raw string) ([]models.CandidateEvent, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, errEmptyResponse
	}

	var items []responseEvent
	switch text[0] {
	case '{':
		var env struct {
			Events *[]json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, fmt.Errorf("malformed completion json: %w", err)
		}
		if env.Events == nil {
			return nil, fmt.Errorf("completion has no events array")
		}
		items = decodeItems(*env.Events)
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, fmt.Errorf("malformed completion json: %w", err)
		}
		items = decodeItems(arr)
	default:
		return nil, fmt.Errorf("completion is not json")
	}

	out := make([]models.CandidateEvent, 0, len(items))
	for _, item := range items {
		out = append(out, item.candidate())
	}
	return out, nil
}

// decodeItems skips individual entries of the wrong shape so one bad item
// does not discard the rest.
func decodeItems(raw []json.RawMessage) []responseEvent {
	items := make([]responseEvent, 0, len(raw))
	for _, r := range raw {
		var item responseEvent
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
