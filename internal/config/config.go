package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ctr-dashboard/internal/format"
)

type Config struct {
	Server   ServerConfig
	Dataset  DatasetConfig
	Display  DisplayConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatasetConfig struct {
	CSVFile       string
	Watch         bool
	WatchDebounce time.Duration
	LoadTimeout   time.Duration
}

type DisplayConfig struct {
	Format format.Config
	TopN   int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Zero values
// leave the defaults in place; environment variables win over both.
type fileConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Dataset struct {
		CSVFile string `yaml:"csv_file"`
		Watch   *bool  `yaml:"watch"`
	} `yaml:"dataset"`
	Display struct {
		Locale   string `yaml:"locale"`
		Decimals *int   `yaml:"decimals"`
		TopN     int    `yaml:"top_n"`
	} `yaml:"display"`
	Logger struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logger"`
	Security struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"security"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Dataset: DatasetConfig{
			CSVFile:       "50krecords.csv",
			Watch:         true,
			WatchDebounce: 500 * time.Millisecond,
			LoadTimeout:   30 * time.Second,
		},
		Display: DisplayConfig{
			Format: format.DefaultConfig(),
			TopN:   10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Server.Host != "" {
		c.Server.Host = f.Server.Host
	}
	if f.Server.Port != 0 {
		c.Server.Port = f.Server.Port
	}
	if f.Dataset.CSVFile != "" {
		c.Dataset.CSVFile = f.Dataset.CSVFile
	}
	if f.Dataset.Watch != nil {
		c.Dataset.Watch = *f.Dataset.Watch
	}
	if f.Display.Locale != "" {
		c.Display.Format.Locale = f.Display.Locale
	}
	if f.Display.Decimals != nil {
		c.Display.Format.Decimals = *f.Display.Decimals
	}
	if f.Display.TopN != 0 {
		c.Display.TopN = f.Display.TopN
	}
	if f.Logger.Level != "" {
		c.Logger.Level = f.Logger.Level
	}
	if f.Logger.Format != "" {
		c.Logger.Format = f.Logger.Format
	}
	if len(f.Security.AllowedOrigins) > 0 {
		c.Security.AllowedOrigins = f.Security.AllowedOrigins
	}
	if len(f.Security.TrustedProxies) > 0 {
		c.Security.TrustedProxies = f.Security.TrustedProxies
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvString("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Dataset.CSVFile = getEnvString("CSV_FILE", c.Dataset.CSVFile)
	c.Dataset.Watch = getEnvBool("DATASET_WATCH", c.Dataset.Watch)
	c.Dataset.WatchDebounce = getEnvDuration("DATASET_WATCH_DEBOUNCE", c.Dataset.WatchDebounce)
	c.Dataset.LoadTimeout = getEnvDuration("DATASET_LOAD_TIMEOUT", c.Dataset.LoadTimeout)

	c.Display.Format.Locale = getEnvString("DISPLAY_LOCALE", c.Display.Format.Locale)
	c.Display.Format.Decimals = getEnvInt("DISPLAY_DECIMALS", c.Display.Format.Decimals)
	c.Display.TopN = getEnvInt("DISPLAY_TOP_N", c.Display.TopN)

	c.Logger.Level = getEnvString("LOG_LEVEL", c.Logger.Level)
	c.Logger.Format = getEnvString("LOG_FORMAT", c.Logger.Format)

	c.Security.EnableRateLimit = getEnvBool("SECURITY_RATE_LIMIT_ENABLED", c.Security.EnableRateLimit)
	c.Security.RateLimitRPS = getEnvInt("SECURITY_RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvInt("SECURITY_RATE_LIMIT_BURST", c.Security.RateLimitBurst)
	c.Security.AllowedOrigins = getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", c.Security.AllowedOrigins)
	c.Security.TrustedProxies = getEnvStringSlice("SECURITY_TRUSTED_PROXIES", c.Security.TrustedProxies)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Dataset.CSVFile == "" {
		return fmt.Errorf("CSV file path cannot be empty")
	}

	if c.Dataset.LoadTimeout <= 0 {
		return fmt.Errorf("dataset load timeout must be positive")
	}

	if c.Display.TopN < 1 || c.Display.TopN > 100 {
		return fmt.Errorf("display top N must be between 1 and 100, got %d", c.Display.TopN)
	}

	if c.Display.Format.Decimals < 0 || c.Display.Format.Decimals > 6 {
		return fmt.Errorf("display decimals must be between 0 and 6, got %d", c.Display.Format.Decimals)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
