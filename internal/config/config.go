package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/optimization"
)

// Config holds process-level settings read from the environment
type Config struct {
	Environment string
	LogLevel    string
	LogDir      string

	Engine struct {
		Workers         int
		MaxCombinations int
		DefaultCapital  float64
	}

	Server struct {
		HTTPAddr    string
		MetricsAddr string
	}

	Cache struct {
		RedisAddr string
		TTL       time.Duration
	}

	Storage struct {
		Driver string
		DSN    string
	}

	Bybit struct {
		Testnet           bool
		Category          string
		RequestsPerSecond float64
	}
}

// Load reads the configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogDir:      getEnv("LOG_DIR", ""),
	}

	cfg.Engine.Workers = getEnvInt("ENGINE_WORKERS", 0)
	cfg.Engine.MaxCombinations = getEnvInt("ENGINE_MAX_COMBINATIONS", optimization.DefaultMaxCombinations)
	cfg.Engine.DefaultCapital = getEnvFloat("DEFAULT_CAPITAL", 100000)

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", "")

	cfg.Cache.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 15*time.Minute)

	cfg.Storage.Driver = getEnv("DB_DRIVER", "sqlite3")
	cfg.Storage.DSN = getEnv("DB_DSN", "")

	cfg.Bybit.Testnet = getEnvBool("BYBIT_TESTNET", false)
	cfg.Bybit.Category = getEnv("BYBIT_CATEGORY", "spot")
	cfg.Bybit.RequestsPerSecond = getEnvFloat("BYBIT_RPS", 5)

	return cfg
}

// LoadWithEnvFile loads envFile (if present) into the environment and then
// reads the configuration. Variables already set take precedence.
func LoadWithEnvFile(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.WrapError(err, errors.ErrorCategoryConfiguration, "config", "load_env").
					WithContext("file", envFile)
			}
		}
	}
	return Load(), nil
}

// WorkerCount resolves the configured worker count, 0 meaning every core
func (c *Config) WorkerCount() int {
	if c.Engine.Workers > 0 {
		return c.Engine.Workers
	}
	return runtime.NumCPU()
}

// Validate checks that the loaded settings are usable
func (c *Config) Validate() error {
	if c.Engine.Workers < 0 {
		return errors.NewConfigError("config", "validate", "ENGINE_WORKERS must not be negative, got %d", c.Engine.Workers)
	}
	if !(c.Engine.DefaultCapital > 0) {
		return errors.NewConfigError("config", "validate", "DEFAULT_CAPITAL must be positive, got %v", c.Engine.DefaultCapital)
	}
	switch c.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return errors.NewConfigError("config", "validate", "DB_DRIVER must be sqlite3 or postgres, got %q", c.Storage.Driver)
	}
	if c.Bybit.RequestsPerSecond <= 0 {
		return errors.NewConfigError("config", "validate", "BYBIT_RPS must be positive, got %v", c.Bybit.RequestsPerSecond)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return defaultVal
}
