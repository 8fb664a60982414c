// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Storage StorageConfig
	Crawler CrawlerConfig
	Fetch   FetchConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	Environment     string
	ShutdownTimeout int
}

// RedisConfig holds Redis configuration for the crawl-result cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// StorageConfig holds object storage configuration for the asset store.
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	Region          string
}

// CrawlerConfig holds media crawler configuration.
type CrawlerConfig struct {
	NavigationTimeout time.Duration
	MediaWait         time.Duration
	LoadSettle        time.Duration
	ClickSettle       time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	HostRateLimit     float64 // crawls per second per host
	CacheTTL          time.Duration
}

// FetchConfig holds configuration for the static HTTP fetcher.
type FetchConfig struct {
	UserAgent string
	Timeout   time.Duration
	MaxBody   int64
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level     string
	Format    string
	AddSource bool
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("PORT", 8080),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "listing-assets"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
		},
		Crawler: CrawlerConfig{
			NavigationTimeout: getEnvAsDuration("CRAWLER_NAVIGATION_TIMEOUT", 45*time.Second),
			MediaWait:         getEnvAsDuration("CRAWLER_MEDIA_WAIT", 10*time.Second),
			LoadSettle:        getEnvAsDuration("CRAWLER_LOAD_SETTLE", 5*time.Second),
			ClickSettle:       getEnvAsDuration("CRAWLER_CLICK_SETTLE", 2*time.Second),
			UserAgent:         getEnv("CRAWLER_USER_AGENT", defaultUserAgent),
			ViewportWidth:     getEnvAsInt("CRAWLER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    getEnvAsInt("CRAWLER_VIEWPORT_HEIGHT", 1080),
			HostRateLimit:     getEnvAsFloat("CRAWLER_HOST_RATE_LIMIT", 0.5),
			CacheTTL:          getEnvAsDuration("CRAWLER_CACHE_TTL", 15*time.Minute),
		},
		Fetch: FetchConfig{
			UserAgent: getEnv("FETCH_USER_AGENT", defaultUserAgent),
			Timeout:   getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxBody:   int64(getEnvAsInt("FETCH_MAX_BODY", 32<<20)),
		},
		Log: LogConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", "json"),
			AddSource: getEnvAsBool("LOG_ADD_SOURCE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Crawler.NavigationTimeout <= 0 {
		return fmt.Errorf("CRAWLER_NAVIGATION_TIMEOUT must be positive")
	}
	if c.Crawler.ViewportWidth <= 0 || c.Crawler.ViewportHeight <= 0 {
		return fmt.Errorf("crawler viewport dimensions must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
