package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"hostel-concierge/internal/language"
)

// keys lists every setting so AutomaticEnv can resolve it without a config
// file (viper only unmarshals keys it knows about).
var keys = []string{
	"aws.state_table", "aws.param_prefix",
	"openai.model", "openai.temperature", "openai.max_tokens", "openai.base_url",
	"hotel_api.base_url",
	"redis.address", "redis.password", "redis.db",
	"lock.ttl_ms", "lock.wait_ms",
	"rate_limit.per_second", "rate_limit.burst",
	"logging.level", "logging.format",
	"language.default",
	"assistant.history_limit",
	"metrics.path",
}

// Load reads .env (when present), then config.yaml from ./configs or the
// working directory, then the environment, e.g. AWS_STATE_TABLE.
func Load() (*Config, error) {
	return load(".")
}

func load(dir string) (*Config, error) {
	loadEnvFile(dir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir + "/configs")
	v.AddConfigPath(dir)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(dir string) {
	path := dir + "/.env"
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o"
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.7
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 500
	}
	if cfg.Lock.TTLMs == 0 {
		cfg.Lock.TTLMs = 180000
	}
	if cfg.Lock.WaitMs == 0 {
		cfg.Lock.WaitMs = 10000
	}
	if cfg.RateLimit.PerSecond == 0 {
		cfg.RateLimit.PerSecond = 1
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Language.Default == "" {
		cfg.Language.Default = string(language.Default)
	}
	if cfg.Assistant.HistoryLimit == 0 {
		cfg.Assistant.HistoryLimit = 10
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.AWS.StateTable == "" {
		return fmt.Errorf("aws.state_table is required")
	}
	if cfg.AWS.ParamPrefix == "" {
		return fmt.Errorf("aws.param_prefix is required")
	}
	if cfg.HotelAPI.BaseURL == "" {
		return fmt.Errorf("hotel_api.base_url is required")
	}
	if _, ok := language.Parse(cfg.Language.Default); !ok {
		return fmt.Errorf("language.default %q is not supported", cfg.Language.Default)
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be within [0, 2]")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	if cfg.Lock.TTLMs <= cfg.Lock.WaitMs {
		return fmt.Errorf("lock.ttl_ms must exceed lock.wait_ms")
	}
	if cfg.RateLimit.PerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	return nil
}

// DefaultLanguage returns the configured fallback language.
func (c *Config) DefaultLanguage() language.Code {
	if l, ok := language.Parse(c.Language.Default); ok {
		return l
	}
	return language.Default
}
