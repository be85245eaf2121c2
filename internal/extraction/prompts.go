package extraction

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/eventradar/radar/internal/models"
)

// PromptTemplates holds the fixed extraction rules and the per-source prompt.
type PromptTemplates struct {
	SystemPrompt string
}

// NewPromptTemplates builds the default prompts.
func NewPromptTemplates() *PromptTemplates {
	return &PromptTemplates{SystemPrompt: buildSystemPrompt()}
}

func buildSystemPrompt() string {
	return `You extract public events from web page content and return them as JSON.

Output ONLY a JSON object of this exact shape, with no surrounding text or markdown:
{
  "events": [
    {
      "title": "Event name as written on the page",
      "date": "YYYY-MM-DD",
      "time": "HH:MM (24-hour) or empty string",
      "location": "Venue name and address if given",
      "city": "City name",
      "category": "` + strings.Join(Categories, "|") + `",
      "description": "One or two factual sentences from the page",
      "detailUrl": "Absolute URL of the event detail page, or empty",
      "registrationUrl": "Absolute URL for tickets or registration, or empty",
      "thumbnail": "Absolute image URL, or empty"
    }
  ]
}

Rules:
1. Prefer free events. Skip events that are clearly ticketed commercial offers unless the page says admission is free or by donation.
2. Every event needs a title and a concrete calendar date. Skip entries without a date. Never invent dates.
3. Write dates as ISO calendar dates (YYYY-MM-DD). Resolve weekday names and missing years relative to the reference date given below; a date without a year lies on or after the reference date.
4. Write times on the 24-hour clock (HH:MM). Use the start time of ranges. Leave time empty if none is given.
5. When no city is stated, use the default city given below.
6. Pick exactly one category from the list. Use "other" when nothing fits.
7. Recurring events: emit one entry per listed date.
8. Keep text in the language of the page. Do not add commentary.
9. If the page lists no events, return {"events": []}.`
}

var instructionsTemplate = template.Must(template.New("instructions").Parse(`Reference date: {{.Today}}
Default city: {{if .City}}{{.City}}{{else}}unknown{{end}}
{{- if .Instructions}}

Source-specific instructions:
{{.Instructions}}
{{- end}}
{{- if .Notes}}

Notes about this source:
{{.Notes}}
{{- end}}`))

type instructionData struct {
	Today        string
	City         string
	Instructions string
	Notes        string
}

// BuildInstructions renders the descriptor's extraction guidance together
// with the reference date and default city.
func BuildInstructions(desc models.SourceDescriptor, today, city string) (string, error) {
	var buf bytes.Buffer
	err := instructionsTemplate.Execute(&buf, instructionData{
		Today:        today,
		City:         city,
		Instructions: strings.TrimSpace(desc.Instructions),
		Notes:        strings.TrimSpace(desc.Notes),
	})
	if err != nil {
		return "", fmt.Errorf("render instructions for %s: %w", desc.Name, err)
	}
	return buf.String(), nil
}

// BuildUserPrompt combines instructions and page content.
func (p *PromptTemplates) BuildUserPrompt(instructions, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("no content to extract from")
	}
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nPage content:\n<<<\n")
	b.WriteString(content)
	b.WriteString("\n>>>")
	return b.String(), nil
}
