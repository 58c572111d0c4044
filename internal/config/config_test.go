package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
weather_api:
  url: "https://api.example.com"
  timeout: "2s"
storage:
  backend: "memory"
`

// clearEnv blanks every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "WEATHER_API_KEY", "STORAGE_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "MEMCACHED_ADDRS", "METRICS_TEXTFILE"} {
		t.Setenv(k, "")
	}
}

// inDir switches to dir for the rest of the test.
func inDir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	secretsDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(secretsDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(secretsDir, "secrets.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	inDir(t, dir)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when no WEATHER_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("Load() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\nredis_password: hunter2\n")
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want key from secrets file", cfg.WeatherAPIKey)
	}
	if cfg.RedisPassword != "hunter2" {
		t.Errorf("RedisPassword = %q, want hunter2", cfg.RedisPassword)
	}
}

func TestLoad_EnvVarBeatsSecretsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key-from-env-1234")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-env-1234" {
		t.Errorf("WeatherAPIKey = %q, want env value", cfg.WeatherAPIKey)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")
	inDir(t, t.TempDir())

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	dir := t.TempDir()
	writeEnvFile(t, dir, "weather_api: {}\n")
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"WeatherAPIURL", cfg.WeatherAPIURL, "https://api.openweathermap.org/data/2.5/weather"},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, 5 * time.Second},
		{"Units", cfg.Units, "metric"},
		{"DefaultCity", cfg.DefaultCity, "Jakarta"},
		{"HistoryTTL", cfg.HistoryTTL, 24 * time.Hour},
		{"HistoryCapacity", cfg.HistoryCapacity, 10},
		{"StorageBackend", cfg.StorageBackend, "file"},
		{"RedisAddr", cfg.RedisAddr, "localhost:6379"},
		{"RedisPrefix", cfg.RedisPrefix, "weather:"},
		{"MemcachedAddrs", cfg.MemcachedAddrs, "localhost:11211"},
		{"MemcachedTimeout", cfg.MemcachedTimeout, 500 * time.Millisecond},
		{"LocationMinLength", cfg.LocationMinLength, 1},
		{"LocationMaxLength", cfg.LocationMaxLength, 100},
		{"RateLimitRPS", cfg.RateLimitRPS, float64(0)},
		{"RateLimitBurst", cfg.RateLimitBurst, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if !strings.HasSuffix(cfg.StorageFilePath, "history.json") {
		t.Errorf("StorageFilePath = %q, want .../history.json", cfg.StorageFilePath)
	}
}

func TestLoad_FullFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
weather_api:
  url: "https://api.example.com/weather"
  timeout: "3s"
  units: "Imperial"
widget:
  default_city: "Bandung"
location:
  min_length: 2
  max_length: 50
history:
  ttl: "12h"
  capacity: 5
storage:
  backend: "sqlite"
  sqlite:
    path: "/tmp/w.db"
  redis:
    addr: "redis:6379"
    db: 2
    prefix: "wx:"
  memcached:
    addrs: "mc1:11211,mc2:11211"
    timeout: "1s"
    max_idle_conns: 4
reliability:
  rate_limit_rps: 0.5
  rate_limit_burst: 3
metrics:
  textfile: "/var/lib/node_exporter/weather.prom"
`)
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Units != "imperial" || cfg.DefaultCity != "Bandung" || cfg.HistoryTTL != 12*time.Hour || cfg.HistoryCapacity != 5 {
		t.Errorf("widget/history fields = %+v", cfg)
	}
	if cfg.StorageBackend != "sqlite" || cfg.SQLitePath != "/tmp/w.db" {
		t.Errorf("storage = %q %q", cfg.StorageBackend, cfg.SQLitePath)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisDB != 2 || cfg.RedisPrefix != "wx:" {
		t.Errorf("redis = %q %d %q", cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" || cfg.MemcachedTimeout != time.Second || cfg.MemcachedMaxIdleConns != 4 {
		t.Errorf("memcached = %q %v %d", cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	}
	if cfg.RateLimitRPS != 0.5 || cfg.RateLimitBurst != 3 {
		t.Errorf("rate limit = %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.MetricsTextfile != "/var/lib/node_exporter/weather.prom" {
		t.Errorf("MetricsTextfile = %q", cfg.MetricsTextfile)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	t.Setenv("STORAGE_BACKEND", " Redis ")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MEMCACHED_ADDRS", "mc:11211")
	t.Setenv("METRICS_TEXTFILE", "/tmp/x.prom")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageBackend != "redis" || cfg.RedisAddr != "cache:6380" || cfg.RedisDB != 3 {
		t.Errorf("redis overrides = %q %q %d", cfg.StorageBackend, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.MemcachedAddrs != "mc:11211" || cfg.MetricsTextfile != "/tmp/x.prom" {
		t.Errorf("overrides = %q %q", cfg.MemcachedAddrs, cfg.MetricsTextfile)
	}
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	t.Setenv("REDIS_DB", "two")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	inDir(t, dir)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_DB") {
		t.Errorf("Load() error = %v, want REDIS_DB error", err)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	dir := t.TempDir()
	writeEnvFile(t, dir, `
weather_api:
  timeout: "not-a-duration"
history:
  ttl: "-1h"
`)
	inDir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPITimeout != 5*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want 5s default", cfg.WeatherAPITimeout)
	}
	if cfg.HistoryTTL != 24*time.Hour {
		t.Errorf("HistoryTTL = %v, want 24h default", cfg.HistoryTTL)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"zero timeout", "weather_api:\n  timeout: \"0s\"\n", "timeout"},
		{"bad units", "weather_api:\n  units: \"kelvin\"\n", "units"},
		{"bad backend", "storage:\n  backend: \"etcd\"\n", "storage.backend"},
		{"min over max", "location:\n  min_length: 20\n  max_length: 10\n", "min_length"},
		{"negative rps", "reliability:\n  rate_limit_rps: -1\n", "rate_limit_rps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
			dir := t.TempDir()
			writeEnvFile(t, dir, tt.yaml)
			inDir(t, dir)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: [unclosed\n")
	inDir(t, dir)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse secrets file") {
		t.Errorf("Load() error = %v, want parse secrets file", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	dir := t.TempDir()
	writeEnvFile(t, dir, "weather_api: [unclosed\n")
	inDir(t, dir)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse config file", err)
	}
}

// TestLoad_ShippedDevConfig verifies config/dev.yaml in the repository loads.
func TestLoad_ShippedDevConfig(t *testing.T) {
	root := findProjectRoot(t)
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	inDir(t, root)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultCity != "Jakarta" {
		t.Errorf("DefaultCity = %q, want Jakarta", cfg.DefaultCity)
	}
}

// TestCoverageGaps_IntentionallyUntested documents paths we reviewed but chose not to test.
// Run with -v to see skip reasons.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Run("loadSecrets_read_error", func(t *testing.T) {
		t.Skip("read-error path (non-IsNotExist) requires simulated ReadFile failure; not worth portability cost")
	})
	t.Run("defaultDataPath_no_user_config_dir", func(t *testing.T) {
		t.Skip("fallback to ./data needs HOME and XDG_CONFIG_HOME unset, which is platform specific")
	})
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
