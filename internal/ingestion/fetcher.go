package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eventradar/radar/internal/models"
)

// Fetcher acquires the raw content of one source. Failures are always
// returned as *models.FetchError so the caller can mark the source unhealthy
// and continue the batch.
type Fetcher interface {
	Fetch(ctx context.Context, desc models.SourceDescriptor) (*models.RawFetchResult, error)
}

// FetcherConfig holds HTTP fetch settings.
type FetcherConfig struct {
	UserAgent   string
	Timeout     time.Duration
	DefaultWait time.Duration
	RetryPolicy RetryPolicy
}

// DefaultFetcherConfig returns sensible defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent:   "event-radar/1.0 (+https://github.com/eventradar/radar)",
		Timeout:     45 * time.Second,
		DefaultWait: 3 * time.Second,
		RetryPolicy: DefaultRetryPolicy(),
	}
}

// HTTPFetcher implements all three fetch strategies.
type HTTPFetcher struct {
	client   *resty.Client
	renderer Renderer
	config   FetcherConfig
	logger   *slog.Logger
}

// NewHTTPFetcher creates a fetcher. renderer may be nil, in which case
// js-render sources fail with a FetchError.
func NewHTTPFetcher(config FetcherConfig, renderer Renderer, logger *slog.Logger) *HTTPFetcher {
	client := resty.New().
		SetHeader("User-Agent", config.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &HTTPFetcher{
		client:   client,
		renderer: renderer,
		config:   config,
		logger:   logger,
	}
}

// Fetch dispatches on the descriptor's strategy. The whole fetch, retries
// included, is bounded by the configured timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, desc models.SourceDescriptor) (*models.RawFetchResult, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		result *models.RawFetchResult
		err    error
	)
	switch desc.Strategy {
	case models.StrategyStatic:
		result, err = f.fetchStatic(ctx, desc)
	case models.StrategyStructuredAPI:
		result, err = f.fetchStructured(ctx, desc)
	case models.StrategyJSRender:
		result, err = f.fetchRendered(ctx, desc)
	default:
		err = &models.FetchError{Source: desc.Name, Err: fmt.Errorf("unknown strategy %q", desc.Strategy)}
	}

	if err != nil {
		f.logger.Warn("fetch failed",
			"source", desc.Name,
			"strategy", desc.Strategy,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}

	f.logger.Debug("fetch complete",
		"source", desc.Name,
		"strategy", desc.Strategy,
		"content_type", result.ContentType,
		"length", result.Length,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (f *HTTPFetcher) get(ctx context.Context, desc models.SourceDescriptor, accept string) (*resty.Response, error) {
	var resp *resty.Response
	err := Retry(ctx, f.config.RetryPolicy, func() error {
		r, err := f.client.R().
			SetContext(ctx).
			SetHeader("Accept", accept).
			Get(desc.URL)
		if err != nil {
			if ctx.Err() != nil {
				return &models.FetchError{Source: desc.Name, Err: ctx.Err()}
			}
			return NewRetryableError(&models.FetchError{Source: desc.Name, Err: err})
		}
		if !r.IsSuccess() {
			fetchErr := &models.FetchError{
				Source:     desc.Name,
				StatusCode: r.StatusCode(),
				Err:        fmt.Errorf("unexpected status %s", http.StatusText(r.StatusCode())),
			}
			if retryableStatus(r.StatusCode()) {
				return NewRetryableErrorWithDelay(fetchErr, parseRetryAfter(r.Header().Get("Retry-After")))
			}
			return fetchErr
		}
		resp = r
		return nil
	})
	if err != nil {
		if models.ErrorCategory(err) != models.CategoryFetch {
			err = &models.FetchError{Source: desc.Name, Err: err}
		}
		return nil, err
	}
	return resp, nil
}

func (f *HTTPFetcher) fetchStatic(ctx context.Context, desc models.SourceDescriptor) (*models.RawFetchResult, error) {
	resp, err := f.get(ctx, desc, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	body := string(resp.Body())
	if strings.TrimSpace(body) == "" {
		return nil, &models.FetchError{Source: desc.Name, StatusCode: resp.StatusCode(), Err: fmt.Errorf("empty body")}
	}

	content := body
	contentType := models.ContentHTML
	if looksLikeHTML(resp.Header().Get("Content-Type"), body) {
		content = CompactHTML(body)
	}
	return newResult(desc, content, contentType, resp.StatusCode()), nil
}

func (f *HTTPFetcher) fetchStructured(ctx context.Context, desc models.SourceDescriptor) (*models.RawFetchResult, error) {
	resp, err := f.get(ctx, desc, "application/json")
	if err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 || (body[0] != '{' && body[0] != '[') {
		return nil, &models.FetchError{Source: desc.Name, StatusCode: resp.StatusCode(), Err: fmt.Errorf("expected a JSON object or array")}
	}
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, body); err != nil {
		return nil, &models.FetchError{Source: desc.Name, StatusCode: resp.StatusCode(), Err: fmt.Errorf("malformed json: %w", err)}
	}
	return newResult(desc, compacted.String(), models.ContentJSON, resp.StatusCode()), nil
}

func (f *HTTPFetcher) fetchRendered(ctx context.Context, desc models.SourceDescriptor) (*models.RawFetchResult, error) {
	if f.renderer == nil {
		return nil, &models.FetchError{Source: desc.Name, Err: fmt.Errorf("no render provider configured")}
	}

	wait := f.config.DefaultWait
	if desc.WaitMs > 0 {
		wait = time.Duration(desc.WaitMs) * time.Millisecond
	}

	page, err := f.renderer.Render(ctx, desc.URL, wait)
	if err != nil {
		return nil, &models.FetchError{Source: desc.Name, Err: fmt.Errorf("render: %w", err)}
	}

	switch {
	case strings.TrimSpace(page.Markdown) != "":
		return newResult(desc, page.Markdown, models.ContentMarkdown, http.StatusOK), nil
	case strings.TrimSpace(page.HTML) != "":
		return newResult(desc, CompactHTML(page.HTML), models.ContentHTML, http.StatusOK), nil
	default:
		return nil, &models.FetchError{Source: desc.Name, Err: fmt.Errorf("render returned no content")}
	}
}

func newResult(desc models.SourceDescriptor, content string, ct models.ContentType, status int) *models.RawFetchResult {
	return &models.RawFetchResult{
		Source:      desc.Name,
		Content:     content,
		ContentType: ct,
		Length:      len(content),
		StatusCode:  status,
		FetchedAt:   time.Now().UTC(),
	}
}

func looksLikeHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(body)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") || strings.Contains(head, "<body")
}

var _ Fetcher = (*HTTPFetcher)(nil)
