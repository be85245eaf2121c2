package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // descriptors and feeds name IANA zones
)

// SourceDescriptor is the static configuration for one external event listing.
// Descriptors are immutable for the lifetime of a deployment.
type SourceDescriptor struct {
	Name            string        `json:"name" yaml:"name"`
	URL             string        `json:"url" yaml:"url"`
	Strategy        FetchStrategy `json:"strategy" yaml:"strategy"`
	Instructions    string        `json:"instructions,omitempty" yaml:"instructions"`
	Active          bool          `json:"active" yaml:"-"`
	Notes           string        `json:"notes,omitempty" yaml:"notes"`
	DefaultCity     string        `json:"default_city,omitempty" yaml:"default_city"`
	DefaultTime     string        `json:"default_time,omitempty" yaml:"default_time"`
	Timezone        string        `json:"timezone,omitempty" yaml:"timezone"`
	WaitMs          int           `json:"wait_ms,omitempty" yaml:"wait_ms"`
	Provider        string        `json:"provider,omitempty" yaml:"provider"`
	MaxContentChars int           `json:"max_content_chars,omitempty" yaml:"max_content_chars"`
}

// FetchStrategy selects how raw content is acquired for a source.
type FetchStrategy string

const (
	StrategyStatic        FetchStrategy = "static"         // plain HTTP GET
	StrategyJSRender      FetchStrategy = "js-render"      // rendered by the render collaborator
	StrategyStructuredAPI FetchStrategy = "structured-api" // JSON endpoint
)

// Valid reports whether the strategy is one of the known fetch strategies.
func (s FetchStrategy) Valid() bool {
	switch s {
	case StrategyStatic, StrategyJSRender, StrategyStructuredAPI:
		return true
	}
	return false
}

// Validate checks the descriptor for configuration mistakes.
func (d SourceDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if !d.Strategy.Valid() {
		return fmt.Errorf("source %s: unknown strategy %q", d.Name, d.Strategy)
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("source %s: invalid url %q", d.Name, d.URL)
	}
	if d.DefaultTime != "" {
		if _, err := time.Parse("15:04", d.DefaultTime); err != nil {
			return fmt.Errorf("source %s: default_time must be HH:MM", d.Name)
		}
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			return fmt.Errorf("source %s: invalid timezone %q", d.Name, d.Timezone)
		}
	}
	if d.WaitMs < 0 || d.MaxContentChars < 0 {
		return fmt.Errorf("source %s: wait_ms and max_content_chars must be non-negative", d.Name)
	}
	return nil
}

// ProviderKey identifies the rate-limit bucket a fetch of this source draws
// from. Rendered sources share the render provider; everything else is keyed
// by host.
func (d SourceDescriptor) ProviderKey() string {
	if d.Provider != "" {
		return d.Provider
	}
	if d.Strategy == StrategyJSRender {
		return "render"
	}
	if u, err := url.Parse(d.URL); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return d.Name
}

// RawFetchResult is the ephemeral handoff from fetcher to extractor.
type RawFetchResult struct {
	Source      string
	Content     string
	ContentType ContentType
	Length      int
	StatusCode  int
	FetchedAt   time.Time
}

// ContentType describes the payload format of a fetch.
type ContentType string

const (
	ContentHTML     ContentType = "html"
	ContentMarkdown ContentType = "markdown"
	ContentJSON     ContentType = "json"
)
