// Package config loads layered application configuration: built-in
// defaults, an optional config file, and environment variables, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         App         `mapstructure:"app"`
	Embedding   Embedding   `mapstructure:"embedding"`
	VectorIndex VectorIndex `mapstructure:"vector_index"`
	Generative  Generative  `mapstructure:"generative"`
	Store       Store       `mapstructure:"store"`
	Server      Server      `mapstructure:"server"`
	Cache       Cache       `mapstructure:"cache"`
	RateLimit   RateLimit   `mapstructure:"rate_limit"`
	Logging     Logging     `mapstructure:"logging"`
}

// App holds general application configuration.
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// Embedding holds the dense embedding provider configuration (C1).
type Embedding struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// VectorIndex holds the nearest-neighbour index configuration (C2).
type VectorIndex struct {
	Name string `mapstructure:"name"`
	M    int    `mapstructure:"m"`
	Ef   int    `mapstructure:"ef"`
}

// Generative holds the text generation provider configuration (C3).
type Generative struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int32         `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Store holds the canonical incident store configuration (C9).
type Store struct {
	Path string `mapstructure:"path"`
}

// Server holds per-request scheduling configuration.
type Server struct {
	RequestDeadline time.Duration `mapstructure:"request_deadline"`
}

// Cache holds the embedding cache configuration.
type Cache struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// RateLimit holds the token-bucket configuration guarding external providers.
type RateLimit struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Logging holds structured-logging configuration.
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load reads configuration from defaults, an optional config file, and the
// environment, in that order of increasing precedence. The result is cached;
// subsequent calls return the same *Config.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".incidentrag")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration, loading it with defaults if necessary.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return cfg
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".incidentrag")

	viper.SetDefault("embedding.model", "gemini-embedding-001")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.timeout", "15s")

	viper.SetDefault("vector_index.name", "incidents")
	viper.SetDefault("vector_index.m", 16)
	viper.SetDefault("vector_index.ef", 64)

	viper.SetDefault("generative.model", "gemini-2.0-flash")
	viper.SetDefault("generative.temperature", float32(0.1))
	viper.SetDefault("generative.max_tokens", int32(1024))
	viper.SetDefault("generative.timeout", "20s")

	viper.SetDefault("store.path", ".incidentrag/incidents.db")

	viper.SetDefault("server.request_deadline", "10s")

	viper.SetDefault("cache.size", 10_000)
	viper.SetDefault("cache.ttl", "1h")

	viper.SetDefault("rate_limit.requests_per_second", 5.0)
	viper.SetDefault("rate_limit.burst", 10)

	viper.SetDefault("logging.level", "info")
}

func bindEnvironmentVariables() {
	bindEnvKeys("embedding.api_key", []string{
		"INCIDENTRAG_EMBEDDING_API_KEY",
		"GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("generative.api_key", []string{
		"INCIDENTRAG_GENERATIVE_API_KEY",
		"GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("vector_index.name", []string{
		"INCIDENTRAG_VECTOR_INDEX_NAME",
	})

	bindEnvKeys("store.path", []string{
		"INCIDENTRAG_STORE_PATH",
	})

	bindEnvKeys("logging.level", []string{
		"INCIDENTRAG_LOG_LEVEL",
	})

	bindEnvKeys("rate_limit.burst", []string{
		"INCIDENTRAG_RATE_LIMIT_BUCKET_SIZE",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"INCIDENTRAG_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key.
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Server.RequestDeadline <= 0 {
		return fmt.Errorf("server.request_deadline must be positive, got %s", cfg.Server.RequestDeadline)
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive, got %f", cfg.RateLimit.RequestsPerSecond)
	}
	return nil
}
