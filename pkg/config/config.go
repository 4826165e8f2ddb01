package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Env string

	// Server
	BindAddr string

	// Client
	ServerAddr  string
	ControlAddr string

	// Audio
	SampleRate int
	Channels   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		BindAddr:    getEnv("VOX_BIND_ADDR", "127.0.0.1:1024"),
		ServerAddr:  getEnv("VOX_SERVER_ADDR", "127.0.0.1:8080"),
		ControlAddr: getEnv("VOX_CONTROL_ADDR", "127.0.0.1:9090"),
		SampleRate:  getEnvAsInt("VOX_SAMPLE_RATE", 48000),
		Channels:    getEnvAsInt("VOX_CHANNELS", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("VOX_BIND_ADDR is required")
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("VOX_SERVER_ADDR is required")
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("VOX_CHANNELS must be 1 or 2, got %d", c.Channels)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("VOX_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
