package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Simulation SimulationConfig
	Bot        BotConfig
	Storage    StorageConfig
	Logging    LoggingConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	URL   string
	Model string
}

// SimulationConfig holds the delays used to fake delivery and read receipts
type SimulationConfig struct {
	DeliveredDelay time.Duration
	ReadDelay      time.Duration
}

// BotConfig holds bot reply configuration
type BotConfig struct {
	MaxSessions int
}

// StorageConfig holds paths for local state
type StorageConfig struct {
	PrefsPath   string
	CatalogPath string
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds per-client API rate limits
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	deliveredDelay, err := getEnvDuration("DELIVERED_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	readDelay, err := getEnvDuration("READ_DELAY", 1200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	maxSessions, err := getEnvInt("BOT_MAX_SESSIONS", 64)
	if err != nil {
		return nil, err
	}
	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", ""),
		},
		Ollama: OllamaConfig{
			URL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model: getEnv("OLLAMA_MODEL", "llama3:8b"),
		},
		Simulation: SimulationConfig{
			DeliveredDelay: deliveredDelay,
			ReadDelay:      readDelay,
		},
		Bot: BotConfig{
			MaxSessions: maxSessions,
		},
		Storage: StorageConfig{
			PrefsPath:   getEnv("PREFS_PATH", "data/prefs"),
			CatalogPath: getEnv("CATALOG_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port != "" {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %s", c.Server.Port)
		}
	}

	if c.Ollama.URL == "" {
		return fmt.Errorf("OLLAMA_URL is required")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("OLLAMA_MODEL is required")
	}

	if c.Simulation.DeliveredDelay <= 0 || c.Simulation.ReadDelay <= 0 {
		return fmt.Errorf("DELIVERED_DELAY and READ_DELAY must be positive")
	}
	if c.Simulation.ReadDelay < c.Simulation.DeliveredDelay {
		return fmt.Errorf("READ_DELAY must not be shorter than DELIVERED_DELAY")
	}

	if c.Bot.MaxSessions < 1 {
		return fmt.Errorf("BOT_MAX_SESSIONS must be at least 1")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return d, nil
}
