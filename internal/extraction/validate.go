package extraction

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eventradar/radar/internal/models"
)

// Categories is the taxonomy the extractor may assign.
var Categories = []string{
	"music", "theater", "exhibition", "festival", "sports", "family",
	"education", "community", "market", "nightlife", "food", "other",
}

var categoryAliases = map[string]string{
	"concert":       "music",
	"konzert":       "music",
	"theatre":       "theater",
	"dance":         "theater",
	"film":          "theater",
	"cinema":        "theater",
	"museum":        "exhibition",
	"art":           "exhibition",
	"kunst":         "exhibition",
	"ausstellung":   "exhibition",
	"sport":         "sports",
	"kids":          "family",
	"children":      "family",
	"kinder":        "family",
	"workshop":      "education",
	"lecture":       "education",
	"talk":          "education",
	"reading":       "education",
	"lesung":        "education",
	"vortrag":       "education",
	"party":         "nightlife",
	"club":          "nightlife",
	"flohmarkt":     "market",
	"flea market":   "market",
	"markt":         "market",
	"fest":          "festival",
	"culinary":      "food",
	"neighbourhood": "community",
	"neighborhood":  "community",
}

const maxDescriptionChars = 1000

// Validator normalizes candidates and applies the schema and range checks.
type Validator struct {
	MaxPastDays   int
	MaxFutureDays int
	DefaultCity   string
	DefaultTime   string
	Location      *time.Location
	Now           func() time.Time
}

// Drop reasons reported by Normalize.
const (
	ReasonMissingTitle = "missing_title"
	ReasonInvalidDate  = "invalid_date"
	ReasonOutOfWindow  = "out_of_window"
)

func (v Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v Validator) loc() *time.Location {
	if v.Location != nil {
		return v.Location
	}
	return time.UTC
}

func (v Validator) today() string {
	return models.Today(v.now(), v.loc())
}

func (v Validator) defaultCity(desc models.SourceDescriptor) string {
	if desc.DefaultCity != "" {
		return desc.DefaultCity
	}
	return v.DefaultCity
}

// InWindow reports whether date lies within the sanity window around today.
// Both bounds are inclusive.
func (v Validator) InWindow(date time.Time) bool {
	today, _ := time.Parse(models.DateLayout, v.today())
	earliest := today.AddDate(0, 0, -v.MaxPastDays)
	latest := today.AddDate(0, 0, v.MaxFutureDays)
	return !date.Before(earliest) && !date.After(latest)
}

// Normalize cleans c and returns the empty reason when it is acceptable.
func (v Validator) Normalize(c models.CandidateEvent, desc models.SourceDescriptor) (models.CandidateEvent, string) {
	out := models.CandidateEvent{
		Title:       collapseSpace(c.Title),
		Location:    collapseSpace(c.Location),
		City:        collapseSpace(c.City),
		Description: truncate(collapseSpace(c.Description), maxDescriptionChars),
	}
	if out.Title == "" {
		return out, ReasonMissingTitle
	}

	date, ok := NormalizeDate(c.Date)
	if !ok {
		return out, ReasonInvalidDate
	}
	if !v.InWindow(date) {
		return out, ReasonOutOfWindow
	}
	out.Date = date.Format(models.DateLayout)

	out.Time = NormalizeTime(c.Time)
	if out.Time == "" {
		out.Time = NormalizeTime(desc.DefaultTime)
	}
	if out.Time == "" {
		out.Time = NormalizeTime(v.DefaultTime)
	}

	if out.City == "" {
		out.City = v.defaultCity(desc)
	}
	out.Category = NormalizeCategory(c.Category)
	out.DetailURL = absoluteURL(c.DetailURL, desc.URL)
	out.RegistrationURL = absoluteURL(c.RegistrationURL, desc.URL)
	out.Thumbnail = absoluteURL(c.Thumbnail, desc.URL)
	return out, ""
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// NormalizeDate parses the date formats the extractor is known to emit.
func NormalizeDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

var timePattern = regexp.MustCompile(`^(\d{1,2})(?:\s*[:.h]\s*(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.|uhr|h)?$`)

// NormalizeTime converts common clock notations to HH:MM. Unrecognised input
// yields the empty string.
func NormalizeTime(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	// Ranges keep the start time.
	for _, sep := range []string{"–", "-", " bis ", " to "} {
		if i := strings.Index(raw, sep); i > 0 {
			raw = strings.TrimSpace(raw[:i])
		}
	}

	m := timePattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ReplaceAll(m[3], ".", "") {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return ""
	}
	return time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format(models.TimeLayout)
}

// NormalizeCategory maps a free-form category onto the taxonomy.
func NormalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	return "other"
}

func absoluteURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || b.Host == "" {
			return ""
		}
		u = b.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
