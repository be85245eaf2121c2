package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eventradar/radar/internal/logging"
	"github.com/eventradar/radar/internal/models"
)

func newTestEngine(c Completer, config EngineConfig) *Engine {
	e := NewEngine(NewLLMExtractor(c), config, logging.Discard())
	e.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

func TestEngineExtract(t *testing.T) {
	completer := NewStaticCompleter(`{"events":[
		{"title":"Poetry Slam","date":"2026-03-14","time":"8pm","category":"reading"},
		{"title":"","date":"2026-03-15"},
		{"title":"Old News","date":"2020-01-01"},
		{"title":"Someday","date":"tbd"}
	]}`)
	config := DefaultEngineConfig()
	config.DefaultCity = "Hamburg"
	engine := newTestEngine(completer, config)

	raw := &models.RawFetchResult{Source: "slam", Content: "Poetry Slam, 14 March, 8pm"}
	res := engine.Extract(context.Background(), raw, models.SourceDescriptor{Name: "slam", URL: "https://slam.example"})

	if res.Failure != nil {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if res.Returned != 4 {
		t.Errorf("expected 4 returned, got %d", res.Returned)
	}
	if res.Dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", res.Dropped)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(res.Candidates))
	}
	c := res.Candidates[0]
	if c.Time != "20:00" || c.City != "Hamburg" || c.Category != "education" {
		t.Errorf("unexpected normalization: %+v", c)
	}

	prompts := completer.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "Reference date: 2026-03-10") {
		t.Errorf("expected reference date in prompt, got %v", prompts)
	}
}

func TestEngineExtractFailure(t *testing.T) {
	tests := []struct {
		name      string
		completer *StaticCompleter
	}{
		{"collaborator error", &StaticCompleter{Err: errors.New("upstream 500")}},
		{"malformed output", NewStaticCompleter(`I could not find any events.`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(tt.completer, DefaultEngineConfig())
			res := engine.Extract(context.Background(), &models.RawFetchResult{Content: "page"}, models.SourceDescriptor{Name: "s"})
			if res.Failure == nil {
				t.Fatal("expected failure")
			}
			if models.ErrorCategory(res.Failure) != models.CategoryExtraction {
				t.Errorf("expected extraction category, got %s", models.ErrorCategory(res.Failure))
			}
			if len(res.Candidates) != 0 {
				t.Errorf("expected no candidates, got %d", len(res.Candidates))
			}
		})
	}
}

func TestEngineTruncatesContent(t *testing.T) {
	completer := NewStaticCompleter(`{"events":[]}`)
	config := DefaultEngineConfig()
	config.MaxContentChars = 10
	engine := newTestEngine(completer, config)

	engine.Extract(context.Background(), &models.RawFetchResult{Content: strings.Repeat("a", 50)}, models.SourceDescriptor{Name: "s"})

	prompts := completer.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(prompts))
	}
	if strings.Contains(prompts[0], strings.Repeat("a", 11)) {
		t.Error("expected content truncated to 10 chars")
	}
}

func TestEngineEmptyContentSkipsCollaborator(t *testing.T) {
	completer := NewStaticCompleter(`{"events":[]}`)
	engine := newTestEngine(completer, DefaultEngineConfig())

	res := engine.Extract(context.Background(), &models.RawFetchResult{}, models.SourceDescriptor{Name: "s"})
	if res.Failure != nil || len(completer.Prompts()) != 0 {
		t.Errorf("expected no call for empty content, got failure=%v prompts=%d", res.Failure, len(completer.Prompts()))
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	got := truncate("äöü", 3)
	if got != "ä" {
		t.Errorf("expected cut at rune boundary, got %q", got)
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := map[string]bool{
		"gpt-4o-mini": false,
		"o4-mini":     true,
		"o1-preview":  true,
		"gpt-5-nano":  true,
	}
	for model, want := range tests {
		if got := isReasoningModel(model); got != want {
			t.Errorf("isReasoningModel(%s): expected %v, got %v", model, want, got)
		}
	}
}
