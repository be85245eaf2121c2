package extraction

import (
	"context"
	"sync"
)

// StaticCompleter returns a canned completion. It records the prompts it was
// given so callers can inspect them.
type StaticCompleter struct {
	Response string
	Err      error

	mu      sync.Mutex
	prompts []string
}

// NewStaticCompleter returns a completer answering with response.
func NewStaticCompleter(response string) *StaticCompleter {
	return &StaticCompleter{Response: response}
}

// Complete implements Completer.
func (s *StaticCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, userPrompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

// Prompts returns the user prompts received so far.
func (s *StaticCompleter) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// NoopCompleter answers every request with an empty event list. It stands in
// when no AI provider is configured.
type NoopCompleter struct{}

// Complete implements Completer.
func (NoopCompleter) Complete(context.Context, string, string) (string, error) {
	return `{"events": []}`, nil
}
