package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds widget configuration loaded from YAML and env.
type Config struct {
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	Units             string

	DefaultCity       string
	LocationMinLength int
	LocationMaxLength int

	HistoryTTL      time.Duration
	HistoryCapacity int

	StorageBackend        string // "file", "sqlite", "redis", "memcached" or "memory"
	StorageFilePath       string
	SQLitePath            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisPrefix           string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsTextfile string
}

type fileConfig struct {
	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Units   string `yaml:"units"`
	} `yaml:"weather_api"`

	Widget struct {
		DefaultCity string `yaml:"default_city"`
	} `yaml:"widget"`

	Location struct {
		MinLength int `yaml:"min_length"`
		MaxLength int `yaml:"max_length"`
	} `yaml:"location"`

	History struct {
		TTL      string `yaml:"ttl"`
		Capacity int    `yaml:"capacity"`
	} `yaml:"history"`

	Storage struct {
		Backend string `yaml:"backend"`
		File    struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"storage"`

	Reliability struct {
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	RedisPassword string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// API key comes from WEATHER_API_KEY env or secrets file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = sec.WeatherAPIKey
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.Units = strings.TrimSpace(strings.ToLower(fc.WeatherAPI.Units))
	if cfg.Units == "" {
		cfg.Units = "metric"
	}

	cfg.DefaultCity = strings.TrimSpace(fc.Widget.DefaultCity)
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "Jakarta"
	}
	cfg.LocationMinLength = fc.Location.MinLength
	if cfg.LocationMinLength <= 0 {
		cfg.LocationMinLength = 1
	}
	cfg.LocationMaxLength = fc.Location.MaxLength
	if cfg.LocationMaxLength <= 0 {
		cfg.LocationMaxLength = 100
	}

	cfg.HistoryTTL = parseDuration(fc.History.TTL, 24*time.Hour)
	cfg.HistoryCapacity = fc.History.Capacity
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 10
	}

	cfg.StorageBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_BACKEND")))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = strings.TrimSpace(strings.ToLower(fc.Storage.Backend))
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "file"
	}
	cfg.StorageFilePath = strings.TrimSpace(fc.Storage.File.Path)
	if cfg.StorageFilePath == "" {
		cfg.StorageFilePath = defaultDataPath("history.json")
	}
	cfg.SQLitePath = strings.TrimSpace(fc.Storage.SQLite.Path)
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = defaultDataPath("history.db")
	}
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = strings.TrimSpace(fc.Storage.Redis.Addr)
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = sec.RedisPassword
	}
	cfg.RedisDB = fc.Storage.Redis.DB
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be an integer: %w", err)
		}
		cfg.RedisDB = db
	}
	cfg.RedisPrefix = fc.Storage.Redis.Prefix
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "weather:"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Storage.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Storage.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Storage.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}

	cfg.MetricsTextfile = strings.TrimSpace(os.Getenv("METRICS_TEXTFILE"))
	if cfg.MetricsTextfile == "" {
		cfg.MetricsTextfile = strings.TrimSpace(fc.Metrics.Textfile)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// defaultDataPath places storage under the user config dir, falling back to ./data.
func defaultDataPath(name string) string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "weather-lookup", name)
	}
	return filepath.Join("data", name)
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	switch cfg.Units {
	case "metric", "imperial", "standard":
	default:
		return fmt.Errorf("weather_api.units must be metric, imperial or standard, got %q", cfg.Units)
	}
	if cfg.LocationMinLength > cfg.LocationMaxLength {
		return fmt.Errorf("location.min_length %d exceeds max_length %d", cfg.LocationMinLength, cfg.LocationMaxLength)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("reliability.rate_limit_rps must not be negative")
	}
	switch cfg.StorageBackend {
	case "file", "sqlite", "redis", "memcached", "memory":
		// valid
	default:
		return fmt.Errorf("storage.backend must be file, sqlite, redis, memcached or memory, got %q", cfg.StorageBackend)
	}
	return nil
}
