package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RenderedPage is what the render collaborator returns for a URL.
type RenderedPage struct {
	HTML     string
	Markdown string
}

// Renderer executes a page's JavaScript and returns the settled document.
type Renderer interface {
	Render(ctx context.Context, url string, wait time.Duration) (RenderedPage, error)
}

// RenderConfig configures the hosted render service.
type RenderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPRenderer talks to a scrape-style render API:
// POST {base}/v1/scrape {"url", "formats", "waitFor"}.
type HTTPRenderer struct {
	client *resty.Client
}

type renderRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
	WaitFor int64    `json:"waitFor"`
}

type renderResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
	} `json:"data"`
	Error string `json:"error"`
}

// NewHTTPRenderer creates a render client.
func NewHTTPRenderer(config RenderConfig) *HTTPRenderer {
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}
	return &HTTPRenderer{client: client}
}

// Render asks the provider to load url and wait before snapshotting.
func (r *HTTPRenderer) Render(ctx context.Context, url string, wait time.Duration) (RenderedPage, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(renderRequest{
			URL:     url,
			Formats: []string{"markdown", "html"},
			WaitFor: wait.Milliseconds(),
		}).
		Post("/v1/scrape")
	if err != nil {
		return RenderedPage{}, fmt.Errorf("render request: %w", err)
	}

	var body renderResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		if !resp.IsSuccess() {
			return RenderedPage{}, fmt.Errorf("render provider status %d", resp.StatusCode())
		}
		return RenderedPage{}, fmt.Errorf("decode render response: %w", err)
	}
	if !resp.IsSuccess() || !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "provider reported failure"
		}
		return RenderedPage{}, fmt.Errorf("render provider status %d: %s", resp.StatusCode(), msg)
	}

	return RenderedPage{HTML: body.Data.HTML, Markdown: body.Data.Markdown}, nil
}

var _ Renderer = (*HTTPRenderer)(nil)
