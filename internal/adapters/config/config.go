package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Redis         RedisConfig
	Providers     ProvidersConfig
	RateLimit     RateLimitConfig
	Breaker       BreakerConfig
	Alerting      AlertingConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hermes"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Host string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port int    `envconfig:"HTTP_PORT" default:"8080"`

	// MaxBodyBytes caps request bodies; vision requests carry inline images
	MaxBodyBytes int64 `envconfig:"HTTP_MAX_BODY_BYTES" default:"10485760"`

	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"0"` // 0: streaming responses stay open
	IdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig is optional; an empty host disables the distributed rate limiter.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Configured() bool {
	return c.Host != ""
}

// ProvidersConfig holds per-provider credentials and registry placement.
// A provider with no key (or base URL for local servers) is not registered at all.
type ProvidersConfig struct {
	// Timeout applies to every adapter's HTTP client unless overridden per provider
	Timeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	OpenAI    OpenAIConfig
	Grok      GrokConfig
	Ollama    OllamaConfig
	Gemini    GeminiConfig
	Anthropic AnthropicConfig
}

type OpenAIConfig struct {
	APIKey   string `envconfig:"OPENAI_API_KEY"`
	Model    string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Priority int    `envconfig:"OPENAI_PRIORITY" default:"1"`
	Disabled bool   `envconfig:"OPENAI_DISABLED" default:"false"`
}

type GrokConfig struct {
	APIKey   string `envconfig:"GROK_API_KEY"`
	BaseURL  string `envconfig:"GROK_BASE_URL" default:"https://api.x.ai/v1"`
	Model    string `envconfig:"GROK_MODEL" default:"grok-2-latest"`
	Priority int    `envconfig:"GROK_PRIORITY" default:"3"`
	Disabled bool   `envconfig:"GROK_DISABLED" default:"false"`
}

type OllamaConfig struct {
	BaseURL  string `envconfig:"OLLAMA_BASE_URL"`
	Model    string `envconfig:"OLLAMA_MODEL" default:"llama3.1"`
	Priority int    `envconfig:"OLLAMA_PRIORITY" default:"10"`
	Disabled bool   `envconfig:"OLLAMA_DISABLED" default:"false"`
}

type GeminiConfig struct {
	APIKey   string `envconfig:"GEMINI_API_KEY"`
	Model    string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	Priority int    `envconfig:"GEMINI_PRIORITY" default:"2"`
	Disabled bool   `envconfig:"GEMINI_DISABLED" default:"false"`
}

type AnthropicConfig struct {
	APIKey   string `envconfig:"ANTHROPIC_API_KEY"`
	Model    string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest"`
	Priority int    `envconfig:"ANTHROPIC_PRIORITY" default:"4"`
	Disabled bool   `envconfig:"ANTHROPIC_DISABLED" default:"false"`
}

type RateLimitConfig struct {
	Enabled  bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	UseRedis bool `envconfig:"RATE_LIMIT_USE_REDIS" default:"false"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	ResetAfter       time.Duration `envconfig:"BREAKER_RESET_AFTER" default:"1m"`
}

// AlertingConfig drives the ops notifier; an empty token disables it.
type AlertingConfig struct {
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64         `envconfig:"TELEGRAM_CHAT_ID"`
	Cooldown         time.Duration `envconfig:"ALERT_COOLDOWN" default:"5m"`
}

func (c AlertingConfig) Configured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// Validate reports every configuration problem at once rather than failing on
// the first one.
func (c *Config) Validate() error {
	var errs errors.MultiError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.Add(errors.NewValidationError("HTTP_PORT", "must be between 1 and 65535", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs.Add(errors.NewValidationError("HTTP_MAX_BODY_BYTES", "must be positive", c.Server.MaxBodyBytes))
	}
	if c.Providers.Timeout <= 0 {
		errs.Add(errors.NewValidationError("PROVIDER_TIMEOUT", "must be positive", c.Providers.Timeout))
	}
	if c.Breaker.FailureThreshold < 1 {
		errs.Add(errors.NewValidationError("BREAKER_FAILURE_THRESHOLD", "must be at least 1", c.Breaker.FailureThreshold))
	}
	if c.Breaker.ResetAfter <= 0 {
		errs.Add(errors.NewValidationError("BREAKER_RESET_AFTER", "must be positive", c.Breaker.ResetAfter))
	}
	if c.RateLimit.UseRedis && !c.Redis.Configured() {
		errs.Add(errors.NewValidationError("RATE_LIMIT_USE_REDIS", "requires REDIS_HOST", c.RateLimit.UseRedis))
	}
	if c.Alerting.TelegramBotToken != "" && c.Alerting.TelegramChatID == 0 {
		errs.Add(errors.NewValidationError("TELEGRAM_CHAT_ID", "required when TELEGRAM_BOT_TOKEN is set", c.Alerting.TelegramChatID))
	}

	return errs.ToError()
}
