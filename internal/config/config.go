package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL  string        `yaml:"backend_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// RateLimit caps outbound backend requests per second; zero disables it.
	RateLimit float64 `yaml:"rate_limit"`

	Port          string `yaml:"port"`
	UploadDir     string `yaml:"upload_dir"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	// DBPath enables the analysis history log when set.
	DBPath string `yaml:"db_path"`

	LiveInterval time.Duration `yaml:"live_interval"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() *Config {
	return &Config{
		BackendURL:    "http://localhost:8000",
		HTTPTimeout:   120 * time.Second,
		Port:          "8080",
		UploadDir:     "./uploads",
		MaxUploadSize: 100 << 20,
		LiveInterval:  1500 * time.Millisecond,
		LogLevel:      "info",
		LogFormat:     "cli",
	}
}

// Load layers defaults, the optional YAML file at path, an optional .env file
// and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.BackendURL = getEnv("EPP_BACKEND_URL", c.BackendURL)
	c.Port = getEnv("PORT", c.Port)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	var err error
	if c.HTTPTimeout, err = getDuration("EPP_HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.LiveInterval, err = getDuration("LIVE_INTERVAL", c.LiveInterval); err != nil {
		return err
	}

	if v := os.Getenv("EPP_RATE_LIMIT"); v != "" {
		if c.RateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid EPP_RATE_LIMIT: %w", err)
		}
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		if c.MaxUploadSize, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.BackendURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.LiveInterval <= 0 {
		return fmt.Errorf("live interval must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "cli", "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	// Bare numbers are milliseconds.
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
