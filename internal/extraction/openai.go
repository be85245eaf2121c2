package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for OpenAI API usage.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// DefaultOpenAIConfig returns defaults suited to structured extraction.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0.1,
		MaxTokens:   4000,
		Timeout:     90 * time.Second,
		MaxRetries:  3,
	}
}

// OpenAICompleter implements Completer with the chat completions API in
// JSON-object mode.
type OpenAICompleter struct {
	client *openai.Client
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAICompleter creates a completer. An empty API key is an error.
func NewOpenAICompleter(config OpenAIConfig, logger *slog.Logger) (*OpenAICompleter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}
	if config.Model == "" {
		config.Model = DefaultOpenAIConfig().Model
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}, nil
}

// isReasoningModel detects o-series and gpt-5 models, which reject
// response_format and system messages.
func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.Contains(m, "gpt-5")
}

func (c *OpenAICompleter) buildRequest(systemPrompt, userPrompt string) openai.ChatCompletionRequest {
	if isReasoningModel(c.config.Model) {
		return openai.ChatCompletionRequest{
			Model:               c.config.Model,
			MaxCompletionTokens: c.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: systemPrompt + "\n\n" + userPrompt},
			},
		}
	}

	return openai.ChatCompletionRequest{
		Model:               c.config.Model,
		Temperature:         c.config.Temperature,
		MaxCompletionTokens: c.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
}

// Complete sends one extraction request. Rate-limited calls are retried with
// exponential backoff; each attempt carries its own timeout.
func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := c.buildRequest(systemPrompt, userPrompt)
	baseDelay := time.Second

	var (
		resp openai.ChatCompletionResponse
		err  error
	)
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		start := time.Now()
		apiCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		resp, err = c.client.CreateChatCompletion(apiCtx, request)
		cancel()

		c.logger.Debug("openai call complete",
			"model", c.config.Model,
			"attempt", attempt+1,
			"duration_ms", time.Since(start).Milliseconds(),
			"success", err == nil)

		if err == nil || !isRateLimited(err) || attempt == c.config.MaxRetries-1 {
			break
		}

		delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Intn(500))*time.Millisecond
		c.logger.Warn("openai rate limited, retrying", "attempt", attempt+1, "delay_ms", delay.Milliseconds())
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", c.config.Model)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w from model %s (finish_reason: %s)", errEmptyResponse, c.config.Model, resp.Choices[0].FinishReason)
	}
	return content, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
