// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func validConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Survey.Topic = "LLM agents"
	return cfg
}

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()
	assert.Equal(t, 10, cfg.Processing.BatchSize)
	assert.True(t, cfg.Processing.Checkpointing)
	assert.Equal(t, ResumeAsk, cfg.Processing.Resume)
	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryDelay)
	assert.True(t, cfg.Report.SummaryCSV)

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig, "defaults have no topic")
	assert.Contains(t, err.Error(), "survey topic is required")
	assert.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr string
	}{
		{"blank topic", func(c *RunConfig) { c.Survey.Topic = "   " }, "survey topic is required"},
		{"no inputs", func(c *RunConfig) { c.Processing.Inputs = nil }, "at least one input"},
		{"zero batch", func(c *RunConfig) { c.Processing.BatchSize = 0 }, "batch size must be positive"},
		{"negative concurrency", func(c *RunConfig) { c.Processing.Concurrency = -1 }, "concurrency must not be negative"},
		{"missing checkpoint path", func(c *RunConfig) { c.Processing.CheckpointFile = "" }, "checkpoint file is required"},
		{"unknown resume", func(c *RunConfig) { c.Processing.Resume = "sometimes" }, "unknown resume policy"},
		{"unknown provider", func(c *RunConfig) { c.LLM.Provider = "bard" }, "unknown provider"},
		{"missing model", func(c *RunConfig) { c.LLM.Model = "" }, "model is required"},
		{"negative retries", func(c *RunConfig) { c.LLM.MaxRetries = -1 }, "max retries"},
		{"negative delay", func(c *RunConfig) { c.LLM.RetryDelay = -time.Second }, "retry delay"},
		{"negative rate", func(c *RunConfig) { c.LLM.RequestsPerSecond = -1 }, "requests per second"},
		{"inverted years", func(c *RunConfig) { c.Filter.YearFrom, c.Filter.YearTo = 2025, 2020 }, "invalid year range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("checkpoint path optional when disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Processing.Checkpointing = false
		cfg.Processing.CheckpointFile = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("problems are joined", func(t *testing.T) {
		cfg := validConfig()
		cfg.Survey.Topic = ""
		cfg.LLM.Model = ""
		err := cfg.Validate()
		assert.Contains(t, err.Error(), "survey topic is required; ")
		assert.Contains(t, err.Error(), "model is required")
	})
}

func TestAttempts(t *testing.T) {
	for _, tt := range []struct{ retries, want int }{{-2, 1}, {0, 1}, {1, 1}, {3, 3}} {
		assert.Equal(t, tt.want, LLMConfig{MaxRetries: tt.retries}.Attempts(), "max_retries=%d", tt.retries)
	}
}

func TestLLMConfigYAMLDurations(t *testing.T) {
	data, err := yaml.Marshal(validConfig())
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 2m0s")
	assert.Contains(t, string(data), "retry_delay: 1s")
	assert.NotContains(t, string(data), "api_key", "empty key is omitted")
}
