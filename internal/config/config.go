package config

import (
	"os"
	"strconv"
	"time"

	"stratforge/internal/errors"
)

// Config represents the complete application configuration. It is built
// once at startup and passed into the pipeline driver by value; there are
// no ambient module-level toggles.
type Config struct {
	Database DatabaseConfig
	AI       AIConfig
	Pipeline PipelineConfig
	Deploy   DeployConfig
	Market   MarketConfig
	Server   ServerConfig
	Paths    PathConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// AIConfig holds the generation service settings
type AIConfig struct {
	Provider    string // "openai" | "heuristic"
	OpenAIKey   string
	OpenAIModel string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// PipelineConfig holds the driver's stage machine settings
type PipelineConfig struct {
	Candidates    int           // generation fan-out per run
	MinViable     int           // minimum surviving artifact count
	MaxConcurrent int           // concurrency limit for external calls
	CallTimeout   time.Duration // per external call
}

// DeployConfig holds the deployment target settings
type DeployConfig struct {
	Endpoint string
	APIKey   string
}

// MarketConfig holds the market context provider settings
type MarketConfig struct {
	Endpoint string
}

// ServerConfig holds the status API settings
type ServerConfig struct {
	Port string
}

// PathConfig holds file system paths
type PathConfig struct {
	PolicyFile   string
	UniverseFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		AI: AIConfig{
			Provider:    envOr("GENERATOR_PROVIDER", "openai"),
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			OpenAIModel: envOr("OPENAI_MODEL", "gpt-4.1-mini"),
			BaseURL:     envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: envFloat("OPENAI_TEMPERATURE", 0.4),
			MaxTokens:   envInt("OPENAI_MAX_TOKENS", 4096),
			Timeout:     envDuration("OPENAI_TIMEOUT", 180*time.Second),
		},
		Pipeline: PipelineConfig{
			Candidates:    envInt("PIPELINE_CANDIDATES", 5),
			MinViable:     envInt("PIPELINE_MIN_VIABLE", 3),
			MaxConcurrent: envInt("PIPELINE_MAX_CONCURRENT", 5),
			CallTimeout:   envDuration("PIPELINE_CALL_TIMEOUT", 240*time.Second),
		},
		Deploy: DeployConfig{
			Endpoint: os.Getenv("DEPLOY_ENDPOINT"),
			APIKey:   os.Getenv("DEPLOY_API_KEY"),
		},
		Market: MarketConfig{
			Endpoint: os.Getenv("MARKET_CONTEXT_ENDPOINT"),
		},
		Server: ServerConfig{
			Port: envOr("PORT", "8090"),
		},
		Paths: PathConfig{
			PolicyFile:   os.Getenv("POLICY_FILE"),
			UniverseFile: os.Getenv("UNIVERSE_FILE"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(c *Config) error {
	if c.AI.Provider == "openai" && c.AI.OpenAIKey == "" {
		return errors.ConfigInvalid("OPENAI_API_KEY is required for the openai provider")
	}
	if c.Pipeline.Candidates < 1 {
		return errors.ConfigInvalid("PIPELINE_CANDIDATES must be at least 1")
	}
	if c.Pipeline.MinViable < 1 {
		return errors.ConfigInvalid("PIPELINE_MIN_VIABLE must be at least 1")
	}
	if c.Pipeline.MinViable > c.Pipeline.Candidates {
		return errors.ConfigInvalid("PIPELINE_MIN_VIABLE cannot exceed PIPELINE_CANDIDATES")
	}
	if c.Pipeline.MaxConcurrent < 1 {
		return errors.ConfigInvalid("PIPELINE_MAX_CONCURRENT must be at least 1")
	}
	return nil
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
