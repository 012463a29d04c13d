package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SurveyConfig describes the survey query papers are judged against.
type SurveyConfig struct {
	// Topic is the survey topic (required).
	Topic string `json:"topic" yaml:"topic"`

	// Description optionally narrows the survey scope.
	Description string `json:"description" yaml:"description"`

	// Keywords are key terms included in the prompt.
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// TopicHash returns the hash binding checkpoints to this survey.
func (s SurveyConfig) TopicHash() string {
	return TopicHash(s.Topic, s.Description)
}

// ResumePolicy selects how the coordinator answers resume decisions.
type ResumePolicy string

const (
	// ResumeAsk prompts the operator.
	ResumeAsk ResumePolicy = "ask"
	// ResumeAlways reuses matching checkpoints without asking. Checkpoints
	// from a different topic are still refused.
	ResumeAlways ResumePolicy = "always"
	// ResumeNever always starts fresh.
	ResumeNever ResumePolicy = "never"
)

// ProcessingConfig holds settings for batch processing and persistence.
type ProcessingConfig struct {
	// Inputs lists paper JSON files or directories containing them.
	Inputs []string `json:"inputs" yaml:"inputs"`

	// OutputFile is the results CSV path.
	OutputFile string `json:"output_file" yaml:"output_file"`

	// CheckpointFile is the checkpoint JSON path.
	CheckpointFile string `json:"checkpoint_file" yaml:"checkpoint_file"`

	// Checkpointing enables a checkpoint flush after every batch (default true).
	Checkpointing bool `json:"checkpointing" yaml:"checkpointing"`

	// KeepCheckpoint keeps the checkpoint after a complete run.
	KeepCheckpoint bool `json:"keep_checkpoint" yaml:"keep_checkpoint"`

	// BatchSize is the number of papers judged between checkpoint flushes (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Concurrency caps simultaneous judgments within a batch. Zero means the
	// batch size.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Resume selects the resume decision policy (default "ask").
	Resume ResumePolicy `json:"resume" yaml:"resume"`
}

// Provider identifies the LLM endpoint flavour.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// LLMConfig holds settings for the judge endpoint and its retry policy.
type LLMConfig struct {
	// Provider is "ollama" (native API) or "openai" (OpenAI-compatible API).
	Provider Provider `json:"provider" yaml:"provider"`

	// BaseURL is the endpoint root (e.g. "http://localhost:11434").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier served by the endpoint.
	Model string `json:"model" yaml:"model"`

	// APIKey is sent to OpenAI-compatible endpoints that require one.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the maximum number of attempts per paper (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryDelay is the wait between attempts.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// ExponentialBackoff doubles RetryDelay after each failed attempt.
	ExponentialBackoff bool `json:"exponential_backoff" yaml:"exponential_backoff"`

	// RequestsPerSecond paces requests to the endpoint. Zero disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// Attempts returns the number of judge calls allowed per paper. At least one
// attempt is always made.
func (c LLMConfig) Attempts() int {
	if c.MaxRetries < 1 {
		return 1
	}
	return c.MaxRetries
}

// llmYAML is the on-disk form of LLMConfig. Durations are written as
// strings ("2m0s") so a written config file reads back unchanged.
type llmYAML struct {
	Provider           Provider `yaml:"provider"`
	BaseURL            string   `yaml:"base_url"`
	Model              string   `yaml:"model"`
	APIKey             string   `yaml:"api_key,omitempty"`
	Timeout            string   `yaml:"timeout"`
	MaxRetries         int      `yaml:"max_retries"`
	RetryDelay         string   `yaml:"retry_delay"`
	ExponentialBackoff bool     `yaml:"exponential_backoff"`
	RequestsPerSecond  float64  `yaml:"requests_per_second"`
}

// MarshalYAML implements yaml.Marshaler.
func (c LLMConfig) MarshalYAML() (any, error) {
	return llmYAML{
		Provider:           c.Provider,
		BaseURL:            c.BaseURL,
		Model:              c.Model,
		APIKey:             c.APIKey,
		Timeout:            c.Timeout.String(),
		MaxRetries:         c.MaxRetries,
		RetryDelay:         c.RetryDelay.String(),
		ExponentialBackoff: c.ExponentialBackoff,
		RequestsPerSecond:  c.RequestsPerSecond,
	}, nil
}

// FilterConfig restricts which loaded papers are judged.
type FilterConfig struct {
	// YearFrom and YearTo bound the publication year (inclusive). Zero is unbounded.
	YearFrom int `json:"year_from" yaml:"year_from"`
	YearTo   int `json:"year_to" yaml:"year_to"`

	// Conferences keeps only the named conferences (case-insensitive).
	Conferences []string `json:"conferences" yaml:"conferences"`

	// Keywords keeps only papers whose title or abstract mention a keyword.
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// ReportConfig holds settings for output generation.
type ReportConfig struct {
	// SummaryCSV writes <output>.summary.csv with rating breakdowns (default true).
	SummaryCSV bool `json:"summary_csv" yaml:"summary_csv"`

	// SeparateCSVs writes one CSV per rating next to the output file.
	SeparateCSVs bool `json:"separate_csvs" yaml:"separate_csvs"`

	// IndexDB is an optional SQLite database the final judgments are ingested into.
	IndexDB string `json:"index_db,omitempty" yaml:"index_db,omitempty"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	// Format is "text" (default) or "json".
	Format  string `json:"format" yaml:"format"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// RunConfig is the read-only configuration for one run. It is built once at
// startup and passed to every component.
type RunConfig struct {
	Survey     SurveyConfig     `json:"survey" yaml:"survey"`
	Processing ProcessingConfig `json:"processing" yaml:"processing"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Filter     FilterConfig     `json:"filter" yaml:"filter"`
	Report     ReportConfig     `json:"report" yaml:"report"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DefaultRunConfig returns the built-in defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Processing: ProcessingConfig{
			Inputs:         []string{"data/papers"},
			OutputFile:     "data/results/relevance_index.csv",
			CheckpointFile: "data/checkpoints/processing_checkpoint.json",
			Checkpointing:  true,
			BatchSize:      10,
			Resume:         ResumeAsk,
		},
		LLM: LLMConfig{
			Provider:   ProviderOllama,
			BaseURL:    "http://localhost:11434",
			Model:      "qwen3:30b-a3b",
			Timeout:    120 * time.Second,
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		Report: ReportConfig{
			SummaryCSV: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ErrInvalidConfig is wrapped by every error returned from Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate reports configuration errors. These are fatal for a run.
func (c RunConfig) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Survey.Topic) == "" {
		problems = append(problems, "survey topic is required")
	}
	if len(c.Processing.Inputs) == 0 {
		problems = append(problems, "at least one input location is required")
	}
	if c.Processing.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("batch size must be positive, got %d", c.Processing.BatchSize))
	}
	if c.Processing.Concurrency < 0 {
		problems = append(problems, fmt.Sprintf("concurrency must not be negative, got %d", c.Processing.Concurrency))
	}
	if c.Processing.Checkpointing && c.Processing.CheckpointFile == "" {
		problems = append(problems, "checkpoint file is required when checkpointing is enabled")
	}
	switch c.Processing.Resume {
	case ResumeAsk, ResumeAlways, ResumeNever:
	default:
		problems = append(problems, fmt.Sprintf("unknown resume policy %q: use ask, always, or never", c.Processing.Resume))
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q: use ollama or openai", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		problems = append(problems, "model is required")
	}
	if c.LLM.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("max retries must not be negative, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.RetryDelay < 0 {
		problems = append(problems, fmt.Sprintf("retry delay must not be negative, got %s", c.LLM.RetryDelay))
	}
	if c.LLM.RequestsPerSecond < 0 {
		problems = append(problems, "requests per second must not be negative")
	}
	if c.Filter.YearFrom > 0 && c.Filter.YearTo > 0 && c.Filter.YearFrom > c.Filter.YearTo {
		problems = append(problems, fmt.Sprintf("invalid year range: %d > %d", c.Filter.YearFrom, c.Filter.YearTo))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
