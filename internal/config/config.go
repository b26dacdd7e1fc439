// Package config loads the concierge settings from config.yaml, .env and the
// environment.
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	AWS       AWSConfig       `mapstructure:"aws"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	HotelAPI  HotelAPIConfig  `mapstructure:"hotel_api"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lock      LockConfig      `mapstructure:"lock"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Language  LanguageConfig  `mapstructure:"language"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AWSConfig struct {
	StateTable  string `mapstructure:"state_table"`
	ParamPrefix string `mapstructure:"param_prefix"`
}

type OpenAIConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	BaseURL     string  `mapstructure:"base_url"`
}

type HotelAPIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// RedisConfig selects the distributed lock. An empty address keeps locking
// in process.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LockConfig bounds the conversation lock. ttl_ms must exceed the slowest
// turn (two 30s model calls plus backend calls at 15s each) and wait_ms.
type LockConfig struct {
	TTLMs  int `mapstructure:"ttl_ms"`
	WaitMs int `mapstructure:"wait_ms"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LanguageConfig struct {
	Default string `mapstructure:"default"`
}

// MetricsConfig sets the GET route serving the Prometheus scrape.
type MetricsConfig struct {
	Path string `mapstructure:"path"`
}

type AssistantConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
