package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Compile-time interface check.
var _ Model = (*OpenAI)(nil)

// OpenAI completes prompts with the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIOption configures an OpenAI backend.
type OpenAIOption func(*openai.ClientConfig)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openai.ClientConfig) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithHTTPTimeout bounds each API request.
func WithHTTPTimeout(d time.Duration) OpenAIOption {
	return func(c *openai.ClientConfig) {
		if d > 0 {
			c.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

// NewOpenAI creates a backend for the named chat model.
func NewOpenAI(apiKey, model string, temperature float32, opts ...OpenAIOption) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// httpStatusError carries the HTTP status of a failed API call so the retry
// policy can tell rate limits and outages from bad requests.
type httpStatusError struct {
	status int
	err    error
}

func (e *httpStatusError) Error() string   { return e.err.Error() }
func (e *httpStatusError) Unwrap() error   { return e.err }
func (e *httpStatusError) StatusCode() int { return e.status }

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("model: openai: %w", &httpStatusError{status: apiErr.HTTPStatusCode, err: err})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("model: openai: %w", &httpStatusError{status: reqErr.HTTPStatusCode, err: err})
	}
	return fmt.Errorf("model: openai: %w", err)
}
