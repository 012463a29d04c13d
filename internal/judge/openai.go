// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls any server that speaks the OpenAI chat completions
// API: llama.cpp, vLLM, LM Studio, or Ollama's /v1 endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend returns a backend for the server at baseURL. The API key
// may be empty for local servers.
func NewOpenAIBackend(baseURL, apiKey, model string, timeout time.Duration) *OpenAIBackend {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the backend name.
func (o *OpenAIBackend) Name() string { return "openai" }

// Complete sends the prompt as a single user message and requests a JSON
// object response.
func (o *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", Malformed(fmt.Errorf("no choices in completion response"))
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", Malformed(fmt.Errorf("completion returned empty content"))
	}
	return content, nil
}

// Probe lists the served models and checks the configured one is present.
func (o *OpenAIBackend) Probe(ctx context.Context) error {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	var available []string
	for _, m := range list.Models {
		if m.ID == o.model {
			return nil
		}
		available = append(available, m.ID)
	}
	if len(available) == 0 {
		return fmt.Errorf("endpoint serves no models")
	}
	return fmt.Errorf("model %q not found (available: %s)", o.model, strings.Join(available, ", "))
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return classifyStatus("OpenAI-compatible endpoint", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return classifyStatus("OpenAI-compatible endpoint", reqErr.HTTPStatusCode, reqErr.Error())
	}
	return Transient(fmt.Errorf("calling OpenAI-compatible endpoint: %w", err))
}
