package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Supported model backends.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config carries every per-session knob. It is loaded once at startup
// and passed into the engine constructor; nothing reads it globally.
type Config struct {
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFile     string `yaml:"log_file" env:"LOG_FILE" env-default:"story.log"`

	// Model backend.
	Provider        string        `yaml:"llm_provider" env:"LLM_PROVIDER" env-default:"ollama"`
	OllamaURL       string        `yaml:"ollama_url" env:"OLLAMA_URL" env-default:"http://localhost:11434"`
	ModelName       string        `yaml:"model_name" env:"MODEL_NAME" env-default:"llama3"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"120s"`

	// Generation parameters.
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE" env-default:"0.8"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS" env-default:"512"`

	// Story buffer.
	ContextTokenBudget int `yaml:"context_token_budget" env:"CONTEXT_TOKEN_BUDGET" env-default:"1024"`
	WindowSize         int `yaml:"window_size" env:"WINDOW_SIZE" env-default:"10"`
	SummaryInterval    int `yaml:"summary_interval" env:"SUMMARY_INTERVAL" env-default:"5"`

	// Display pacing.
	LinesPerChunk int `yaml:"lines_per_chunk" env:"LINES_PER_CHUNK" env-default:"3"`

	// Persistence.
	SaveDir  string `yaml:"save_dir" env:"SAVE_DIR" env-default:"saves"`
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// Load reads the optional config file, then environment overrides.
// A missing file is fine; env-only operation is the common case.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		path = "storycli.yml"
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("unknown llm provider %q", c.Provider)
	}
	if c.Provider == ProviderAnthropic && c.AnthropicAPIKey == "" {
		return fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.ContextTokenBudget <= 0 {
		return fmt.Errorf("context token budget must be positive, got %d", c.ContextTokenBudget)
	}
	return nil
}

// SlogLevel maps the configured level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
