// Package llm wraps the OpenAI chat completion API behind small,
// typed helpers. Every structured call either returns validated JSON
// decoded into a struct or an explicit error; callers never receive a
// guessed value.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sponsorscan/sponsorscan/internal/config"
)

// Client is the single LLM adapter shared by contact discovery,
// audience estimation, and tag assignment.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// New returns nil when no API key is configured; callers treat a nil
// client as "LLM disabled" and use their fallbacks.
func New(cfg config.LLMConfig) *Client {
	if !cfg.Enabled() {
		return nil
	}
	return &Client{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

// Complete sends one prompt with an optional system message and
// returns the raw completion text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete prompt: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// completeJSON runs the prompt and decodes the response into out,
// tolerating markdown code fences around the JSON body.
func (c *Client) completeJSON(ctx context.Context, system, prompt string, out interface{}) error {
	raw, err := c.Complete(ctx, system, prompt)
	if err != nil {
		return err
	}
	cleaned := StripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to parse completion as JSON: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, with or
// without a language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// Drop a language tag like "json" on the fence line.
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.Contains(first, "{") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
