package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docanalyze/internal/extract"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Completion service
	Provider         string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	Model            string
	LLMTimeout       time.Duration

	// Task defaults
	MaxResponseTokens   int
	Temperature         float64
	DefaultTask         string
	DefaultOutputFormat string
	RollingContextChars int

	// Retry
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxDocumentBytes int64

	// Job state
	JobTTL time.Duration

	// Tokenizer
	MeterCacheSize int

	// Pathstore result sink; disabled when the key is empty.
	PathstoreURL    string
	PathstoreAPIKey string
}

// LoadDotEnv reads variables from the given files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCANALYZE_API_KEY"),

		Provider:         strings.ToLower(envOr("LLM_PROVIDER", "openai")),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		Model:            envOr("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:       envDuration("LLM_TIMEOUT", 120*time.Second),

		MaxResponseTokens:   envInt("MAX_RESPONSE_TOKENS", 4000),
		Temperature:         envFloat("TEMPERATURE", 0.3),
		DefaultTask:         envOr("DEFAULT_TASK", "analyze and restructure"),
		DefaultOutputFormat: envOr("DEFAULT_OUTPUT_FORMAT", "structured_json"),
		RollingContextChars: envInt("ROLLING_CONTEXT_CHARS", 1000),

		MaxRetries:     envInt("LLM_MAX_RETRIES", 3),
		RetryBaseDelay: envDuration("LLM_RETRY_BASE_DELAY", 1*time.Second),
		RetryMaxDelay:  envDuration("LLM_RETRY_MAX_DELAY", 30*time.Second),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxDocumentBytes: envInt64("MAX_DOCUMENT_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		MeterCacheSize: envInt("METER_CACHE_SIZE", 16),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
	}

	if cfg.MaxResponseTokens <= 0 {
		cfg.MaxResponseTokens = 4000
	}
	if cfg.RollingContextChars <= 0 {
		cfg.RollingContextChars = 1000
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 1 * time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MeterCacheSize <= 0 {
		cfg.MeterCacheSize = 16
	}

	return cfg
}

// Validate checks the settings the HTTP service cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCANALYZE_API_KEY is required")
	}
	return c.ValidateProvider()
}

// ValidateProvider checks that the selected completion provider has a key.
func (c Config) ValidateProvider() error {
	switch c.Provider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider openai")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not one of anthropic, openai", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("TEMPERATURE %.2f is outside [0, 2]", c.Temperature)
	}
	return nil
}

// Completion returns the provider settings for the selected provider.
func (c Config) Completion() extract.ProviderConfig {
	pc := extract.ProviderConfig{
		Provider: c.Provider,
		Model:    c.Model,
		Timeout:  c.LLMTimeout,
	}
	switch c.Provider {
	case extract.ProviderAnthropic:
		pc.APIKey, pc.BaseURL = c.AnthropicAPIKey, c.AnthropicBaseURL
	case extract.ProviderOpenAI:
		pc.APIKey, pc.BaseURL = c.OpenAIAPIKey, c.OpenAIBaseURL
	}
	return pc
}

// PersistenceEnabled reports whether results are written to pathstore.
func (c Config) PersistenceEnabled() bool {
	return c.PathstoreAPIKey != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
