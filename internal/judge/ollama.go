// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/survey-engine/internal/httputil"
)

// busyRetries is how many times a single attempt waits out a busy Ollama
// server (HTTP 429/503) before the attempt counts as failed.
const busyRetries = 2

// verdictSchema is sent as Ollama's "format" so the server constrains
// decoding to the expected object.
var verdictSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "rating": {"type": "string", "enum": ["High", "Medium", "Low"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  },
  "required": ["rating", "confidence", "reasoning"]
}`)

// OllamaBackend calls a local Ollama server through its native chat API.
type OllamaBackend struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewOllamaBackend returns a backend for the server at baseURL.
func NewOllamaBackend(baseURL, model string, timeout time.Duration) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaBackend{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// Name returns the backend name.
func (o *OllamaBackend) Name() string { return "ollama" }

// Complete sends the prompt to /api/chat and returns the message content.
func (o *OllamaBackend) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.Model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   verdictSchema,
		Options:  ollamaOptions{Temperature: 0},
	})
	if err != nil {
		return "", Fatal(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", Fatal(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, o.client(), req, busyRetries)
	if err != nil {
		return "", Transient(fmt.Errorf("calling Ollama: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(fmt.Errorf("reading Ollama response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus("Ollama", resp.StatusCode, apiErrorMessage(data))
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return "", Malformed(fmt.Errorf("decoding Ollama response: %w", err))
	}
	if strings.TrimSpace(chat.Message.Content) == "" {
		return "", Malformed(fmt.Errorf("Ollama returned empty content"))
	}
	return chat.Message.Content, nil
}

// Probe lists local models via /api/tags and checks the configured one is
// present.
func (o *OllamaBackend) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client().Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", o.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s/api/tags", resp.StatusCode, o.BaseURL)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decoding model list: %w", err)
	}

	var available []string
	for _, m := range tags.Models {
		name := m.Model
		if name == "" {
			name = m.Name
		}
		if sameModel(name, o.Model) {
			return nil
		}
		available = append(available, name)
	}
	if len(available) == 0 {
		return fmt.Errorf("no models available in Ollama at %s", o.BaseURL)
	}
	return fmt.Errorf("model %q not found (available: %s)", o.Model, strings.Join(available, ", "))
}

func (o *OllamaBackend) client() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

// sameModel compares model names, treating a missing tag as ":latest".
func sameModel(a, b string) bool {
	norm := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return norm(a) == norm(b)
}

func apiErrorMessage(body []byte) string {
	var apiErr ollamaError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(body))
}

// classifyStatus maps an HTTP error status to a judge error. Busy and server
// errors may clear up; client errors will not.
func classifyStatus(endpoint string, status int, msg string) error {
	err := fmt.Errorf("%s returned HTTP %d: %s", endpoint, status, msg)
	if httputil.Busy(status) || status >= 500 || status == http.StatusRequestTimeout {
		return Transient(err)
	}
	return Fatal(err)
}
