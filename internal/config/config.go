// Package config provides configuration management for the yield scanner application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Scanner   ScannerConfig
	Engine    EngineConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ScannerConfig holds scan orchestrator configuration
type ScannerConfig struct {
	// ScanLatency is the simulated duration of a single-agent scan.
	ScanLatency time.Duration
	// ParallelLatencyMin/Max bound the randomized latency of parallel scan
	// tasks so completions interleave out of order.
	ParallelLatencyMin time.Duration
	ParallelLatencyMax time.Duration
	// FindProbability is the chance that a completed scan discovers an
	// opportunity (0..1).
	FindProbability float64
	// APYMin/Max bound the uniformly drawn APY of synthesized opportunities.
	APYMin float64
	APYMax float64
	// TVLMin/Max bound the synthesized total value locked.
	TVLMin float64
	TVLMax float64
	// Assets is the fixed set a discovered opportunity's asset is drawn from.
	Assets []string
}

// EngineConfig holds strategy execution engine configuration
type EngineConfig struct {
	// InvestmentAmount is the fixed amount deposited per execution.
	InvestmentAmount float64
	// GasFeeMin/Max bound the simulated gas fee.
	GasFeeMin float64
	GasFeeMax float64
	// GasUsedMin/Max bound the simulated gas units.
	GasUsedMin int64
	GasUsedMax int64
}

// RedisConfig holds redis enrichment cache configuration.
// An empty Host disables the cache and lookups go straight to the catalog.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a redis cache should be connected.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scanner: ScannerConfig{
			ScanLatency:        getEnvAsDuration("SCAN_LATENCY", 5*time.Second),
			ParallelLatencyMin: getEnvAsDuration("PARALLEL_SCAN_LATENCY_MIN", 3*time.Second),
			ParallelLatencyMax: getEnvAsDuration("PARALLEL_SCAN_LATENCY_MAX", 7*time.Second),
			FindProbability:    getEnvAsFloat("SCAN_FIND_PROBABILITY", 0.7),
			APYMin:             getEnvAsFloat("SCAN_APY_MIN", 2.0),
			APYMax:             getEnvAsFloat("SCAN_APY_MAX", 22.0),
			TVLMin:             getEnvAsFloat("SCAN_TVL_MIN", 500_000),
			TVLMax:             getEnvAsFloat("SCAN_TVL_MAX", 50_000_000),
			Assets:             getEnvAsList("SCAN_ASSETS", []string{"USDC", "USDT", "DAI", "ETH", "WBTC"}),
		},
		Engine: EngineConfig{
			InvestmentAmount: getEnvAsFloat("ENGINE_INVESTMENT_AMOUNT", 1.0),
			GasFeeMin:        getEnvAsFloat("ENGINE_GAS_FEE_MIN", 0.001),
			GasFeeMax:        getEnvAsFloat("ENGINE_GAS_FEE_MAX", 0.01),
			GasUsedMin:       int64(getEnvAsInt("ENGINE_GAS_USED_MIN", 21_000)),
			GasUsedMax:       int64(getEnvAsInt("ENGINE_GAS_USED_MAX", 250_000)),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate rejects configurations the orchestrator cannot run with
func (c *Config) validate() error {
	if c.Scanner.FindProbability < 0 || c.Scanner.FindProbability > 1 {
		return fmt.Errorf("SCAN_FIND_PROBABILITY must be between 0 and 1, got %v", c.Scanner.FindProbability)
	}
	if c.Scanner.APYMax < c.Scanner.APYMin {
		return fmt.Errorf("SCAN_APY_MAX (%v) must not be below SCAN_APY_MIN (%v)", c.Scanner.APYMax, c.Scanner.APYMin)
	}
	if c.Scanner.ParallelLatencyMax < c.Scanner.ParallelLatencyMin {
		return fmt.Errorf("PARALLEL_SCAN_LATENCY_MAX (%v) must not be below PARALLEL_SCAN_LATENCY_MIN (%v)",
			c.Scanner.ParallelLatencyMax, c.Scanner.ParallelLatencyMin)
	}
	if len(c.Scanner.Assets) == 0 {
		return fmt.Errorf("SCAN_ASSETS must name at least one asset")
	}
	if c.Engine.InvestmentAmount <= 0 {
		return fmt.Errorf("ENGINE_INVESTMENT_AMOUNT must be positive, got %v", c.Engine.InvestmentAmount)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets an environment variable as a comma-separated list
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
