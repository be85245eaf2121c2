// Package extraction turns raw source content into candidate events through a
// text-generation collaborator and validates what comes back.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventradar/radar/internal/models"
)

// Completer is the text-generation capability. Implementations must return a
// single JSON object.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Extractor turns content plus source instructions into unvalidated candidates.
type Extractor interface {
	Extract(ctx context.Context, content, instructions string) ([]models.CandidateEvent, error)
}

// LLMExtractor implements Extractor on top of a Completer.
type LLMExtractor struct {
	completer Completer
	prompts   *PromptTemplates
}

// NewLLMExtractor creates an extractor with the default prompt rules.
func NewLLMExtractor(completer Completer) *LLMExtractor {
	return &LLMExtractor{completer: completer, prompts: NewPromptTemplates()}
}

// Extract calls the completer and parses its events array.
func (x *LLMExtractor) Extract(ctx context.Context, content, instructions string) ([]models.CandidateEvent, error) {
	prompt, err := x.prompts.BuildUserPrompt(instructions, content)
	if err != nil {
		return nil, err
	}

	raw, err := x.completer.Complete(ctx, x.prompts.SystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return ParseResponse(raw)
}

// Result is the outcome of extracting one source. Failure is set when the
// collaborator failed or answered with something unparseable; Candidates is
// empty in that case.
type Result struct {
	Candidates []models.CandidateEvent
	Returned   int
	Dropped    int
	Failure    error
}

// EngineConfig holds the extraction defaults applied to every source.
type EngineConfig struct {
	MaxContentChars int
	DefaultCity     string
	DefaultTime     string
	MaxPastDays     int
	MaxFutureDays   int
	Location        *time.Location
}

// DefaultEngineConfig returns the standard sanity window and content cap.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxContentChars: 15000,
		MaxPastDays:     90,
		MaxFutureDays:   365,
		Location:        time.UTC,
	}
}

// Engine runs extraction for a fetched source and filters the candidates.
type Engine struct {
	extractor Extractor
	config    EngineConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine wires an extractor with validation.
func NewEngine(extractor Extractor, config EngineConfig, logger *slog.Logger) *Engine {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxContentChars <= 0 {
		config.MaxContentChars = DefaultEngineConfig().MaxContentChars
	}
	return &Engine{extractor: extractor, config: config, logger: logger, now: time.Now}
}

// Extract never returns an error: collaborator failures are reported in
// Result.Failure and yield zero candidates.
func (e *Engine) Extract(ctx context.Context, raw *models.RawFetchResult, desc models.SourceDescriptor) Result {
	if raw == nil || raw.Content == "" {
		return Result{}
	}

	limit := e.config.MaxContentChars
	if desc.MaxContentChars > 0 {
		limit = desc.MaxContentChars
	}
	content := truncate(raw.Content, limit)

	v := e.validator(desc)
	instructions, err := BuildInstructions(desc, v.today(), v.defaultCity(desc))
	if err != nil {
		return Result{Failure: &models.ExtractionError{Source: desc.Name, Err: err}}
	}

	start := time.Now()
	candidates, err := e.extractor.Extract(ctx, content, instructions)
	if err != nil {
		e.logger.Warn("extraction failed",
			"source", desc.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return Result{Failure: &models.ExtractionError{Source: desc.Name, Err: err}}
	}

	res := Result{Returned: len(candidates)}
	for _, c := range candidates {
		normalized, reason := v.Normalize(c, desc)
		if reason != "" {
			res.Dropped++
			e.logger.Debug("candidate dropped", "source", desc.Name, "title", c.Title, "date", c.Date, "reason", reason)
			continue
		}
		res.Candidates = append(res.Candidates, normalized)
	}

	e.logger.Info("extraction complete",
		"source", desc.Name,
		"content_chars", len(content),
		"returned", res.Returned,
		"accepted", len(res.Candidates),
		"dropped", res.Dropped,
		"duration_ms", time.Since(start).Milliseconds())

	return res
}

func (e *Engine) validator(desc models.SourceDescriptor) Validator {
	loc := e.config.Location
	if desc.Timezone != "" {
		if l, err := time.LoadLocation(desc.Timezone); err == nil {
			loc = l
		}
	}
	return Validator{
		MaxPastDays:   e.config.MaxPastDays,
		MaxFutureDays: e.config.MaxFutureDays,
		DefaultCity:   e.config.DefaultCity,
		DefaultTime:   e.config.DefaultTime,
		Location:      loc,
		Now:           e.now,
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// Back off to a rune boundary.
	cut := limit
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

var _ Extractor = (*LLMExtractor)(nil)

// errEmptyResponse is returned when the completer produced no content.
var errEmptyResponse = fmt.Errorf("empty completion")
