package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the full configuration for a pipeline run.
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig     `toml:"logging"`
	Storage     StorageConfig     `toml:"storage"`
	Scraper     ScraperConfig     `toml:"scraper"`
	LinkTracker LinkTrackerConfig `toml:"link_tracker"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	LLM         LLMConfig         `toml:"llm"`
	Classifier  ClassifierConfig  `toml:"classifier"`
	Bypass      BypassConfig      `toml:"bypass"`
	Checkpoint  CheckpointConfig  `toml:"checkpoint"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`  // debug|info|warn|error
	Format     string   `toml:"format"` // text|json
	Output     []string `toml:"output"` // stdout, file
	TimeFormat string   `toml:"time_format"`
}

// StorageConfig selects and configures the persistent job store backend.
type StorageConfig struct {
	Backend  string         `toml:"backend" validate:"oneof=badger postgres"`
	Badger   BadgerConfig   `toml:"badger"`
	Postgres PostgresConfig `toml:"postgres"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean runs
}

// PostgresConfig configures the pgx-backed persistent job store.
type PostgresConfig struct {
	DSN       string `toml:"dsn"`
	MaxConns  int32  `toml:"max_conns"`
	TableName string `toml:"table_name"`
}

// ScraperConfig configures the external scraper-provider facades.
type ScraperConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimit      time.Duration `toml:"rate_limit"` // minimum delay between calls per source
	MaxRetries     int           `toml:"max_retries"`
	OutscraperURL  string        `toml:"outscraper_url"`
	OutscraperKey  string        `toml:"outscraper_key"`
	GoogleJobsURL  string        `toml:"google_jobs_url"`
	GoogleJobsKey  string        `toml:"google_jobs_key"`
}

// LinkTrackerConfig configures the link-shortening facade.
type LinkTrackerConfig struct {
	BaseURL        string        `toml:"base_url"`
	APIKey         string        `toml:"api_key"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	Enabled        bool          `toml:"enabled"`
}

// GeminiConfig contains Google Gemini API configuration for classification.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`    // duration string, e.g. "30s"
	RateLimit   string  `toml:"rate_limit"` // duration string between requests
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration for classification.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type.
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the default classification provider.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

// ClassifierConfig controls batching and concurrency for AI classification.
type ClassifierConfig struct {
	BatchSize            int    `toml:"batch_size"`
	MaxConcurrentBatches int    `toml:"max_concurrent_batches"`
	MemoryReuseWindow    string `toml:"memory_reuse_window"` // duration string, default 720h
	Type                 string `toml:"type" validate:"oneof=cdl pathway"`
}

// BypassConfig holds the credit/bypass controller tunables.
type BypassConfig struct {
	QualityYieldRate   float64 `toml:"quality_yield_rate"`   // default 0.15
	CostPerJob         float64 `toml:"cost_per_job"`         // default 0.001
	LookbackWindow     string  `toml:"lookback_window"`      // default 96h
	LargeModeCap       int     `toml:"large_mode_cap"`       // default 100
	LargeModeThreshold int     `toml:"large_mode_threshold"` // default 1000
}

type CheckpointConfig struct {
	Dir     string `toml:"dir"`
	Enabled bool   `toml:"enabled"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings need to be exposed in a pipeline.toml override.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Backend: "badger",
			Badger: BadgerConfig{
				Path: "./data/jobs",
			},
			Postgres: PostgresConfig{
				MaxConns:  10,
				TableName: "jobs",
			},
		},
		Scraper: ScraperConfig{
			RequestTimeout: 2 * time.Minute,
			RateLimit:      1 * time.Second,
			MaxRetries:     3,
		},
		LinkTracker: LinkTrackerConfig{
			RequestTimeout: 10 * time.Second,
			Enabled:        false,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			Timeout:     "30s",
			RateLimit:   "4s",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   2048,
			Timeout:     "30s",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Classifier: ClassifierConfig{
			BatchSize:            25,
			MaxConcurrentBatches: 10,
			MemoryReuseWindow:    "720h",
			Type:                 "cdl",
		},
		Bypass: BypassConfig{
			QualityYieldRate:   0.15,
			CostPerJob:         0.001,
			LookbackWindow:     "96h",
			LargeModeCap:       100,
			LargeModeThreshold: 1000,
		},
		Checkpoint: CheckpointConfig{
			Dir:     "./data/checkpoints",
			Enabled: true,
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> ... -> env.
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PIPELINE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("PIPELINE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("PIPELINE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if backend := os.Getenv("PIPELINE_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if path := os.Getenv("PIPELINE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dsn := os.Getenv("PIPELINE_POSTGRES_DSN"); dsn != "" {
		config.Storage.Postgres.DSN = dsn
	}

	if key := os.Getenv("PIPELINE_OUTSCRAPER_KEY"); key != "" {
		config.Scraper.OutscraperKey = key
	}
	if key := os.Getenv("PIPELINE_GOOGLE_JOBS_KEY"); key != "" {
		config.Scraper.GoogleJobsKey = key
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("PIPELINE_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("PIPELINE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("PIPELINE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("PIPELINE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("PIPELINE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	if n := os.Getenv("PIPELINE_CLASSIFIER_BATCH_SIZE"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Classifier.BatchSize = v
		}
	}
	if n := os.Getenv("PIPELINE_CLASSIFIER_MAX_CONCURRENT"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Classifier.MaxConcurrentBatches = v
		}
	}

	if dir := os.Getenv("PIPELINE_CHECKPOINT_DIR"); dir != "" {
		config.Checkpoint.Dir = dir
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority,
// falling back to the config-file value when the environment is unset.
// envNames is checked in order; the first non-empty value wins.
func ResolveAPIKey(envNames []string, configFallback string) (string, error) {
	for _, name := range envNames {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	if configFallback != "" {
		return configFallback, nil
	}
	return "", fmt.Errorf("API key not found in environment (%v) or config", envNames)
}

// Validate checks the oneof constraints declared on Storage.Backend,
// LLM.DefaultProvider, and Classifier.Type using go-playground/validator.
// Called once after LoadFromFiles so a bad config fails fast at startup
// rather than surfacing as an opaque error mid-run.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
