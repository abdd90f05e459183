package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Aggregation.Workers != 5 || cfg.Aggregation.Deadline != 45*time.Second {
		t.Errorf("unexpected aggregation defaults %+v", cfg.Aggregation)
	}
	if cfg.Summarizer.MaxRetries != 3 || cfg.Summarizer.Cooldown != time.Minute {
		t.Errorf("unexpected summarizer defaults %+v", cfg.Summarizer)
	}
	if len(cfg.Sources) != 4 {
		t.Fatalf("expected 4 default sources, got %d", len(cfg.Sources))
	}
	kinds := map[string]bool{}
	for _, s := range cfg.Sources {
		kinds[s.Kind] = true
		if !s.IsEnabled() {
			t.Errorf("default source %s disabled", s.Name)
		}
	}
	for _, k := range []string{"api", "html", "browser"} {
		if !kinds[k] {
			t.Errorf("no default source of kind %s", k)
		}
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
logging:
  level: "debug"
summarizer:
  credentials: ["k1", "k2"]
  attempt_timeout: 15s
sources:
  - name: forum
    kind: api
    limit: 5
    ttl: 30m
    options:
      url: "https://forum.test/search?q={query}"
  - name: shop
    kind: html
    enabled: false
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if len(cfg.Summarizer.Credentials) != 2 || cfg.Summarizer.AttemptTimeout != 15*time.Second {
		t.Errorf("unexpected summarizer %+v", cfg.Summarizer)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources in YAML should replace defaults, got %d", len(cfg.Sources))
	}
	if s := cfg.Sources[0]; s.Name != "forum" || s.Limit != 5 || s.TTL != 30*time.Minute || s.Options["url"] == "" {
		t.Errorf("unexpected source %+v", s)
	}
	if cfg.Sources[1].IsEnabled() {
		t.Error("shop should be disabled")
	}
	// Unchanged fields keep defaults
	if cfg.Summarizer.Model != "openai/gpt-4o-mini" {
		t.Errorf("expected default model, got %s", cfg.Summarizer.Model)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("PAINRADAR_PORT", "7070")
	t.Setenv("PAINRADAR_LLM_KEYS", " k1, ,k2,k3 ")
	t.Setenv("PAINRADAR_LLM_ATTEMPT_TIMEOUT", "5s")
	t.Setenv("PAINRADAR_LLM_TEMPERATURE", "0.7")
	t.Setenv("PAINRADAR_WORKERS", "2")
	t.Setenv("PAINRADAR_CACHE_BACKEND", "redis")
	t.Setenv("PAINRADAR_LOG_ASYNC", "true")
	t.Setenv("PAINRADAR_SUMMARIZE_EMPTY", "true")
	t.Setenv("NATS_URL", "nats://queue:4222")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if strings.Join(cfg.Summarizer.Credentials, "|") != "k1|k2|k3" {
		t.Errorf("unexpected credentials %q", cfg.Summarizer.Credentials)
	}
	if cfg.Summarizer.AttemptTimeout != 5*time.Second {
		t.Errorf("expected attempt timeout 5s, got %v", cfg.Summarizer.AttemptTimeout)
	}
	if cfg.Summarizer.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.Summarizer.Temperature)
	}
	if !cfg.Summarizer.SummarizeEmpty {
		t.Error("expected summarize_empty from env")
	}
	if cfg.Aggregation.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Aggregation.Workers)
	}
	if cfg.Cache.Backend != "redis" || !cfg.Logging.Async {
		t.Errorf("unexpected cache/logging %+v %+v", cfg.Cache, cfg.Logging)
	}
	if cfg.NATS.URL != "nats://queue:4222" {
		t.Errorf("unexpected nats url %s", cfg.NATS.URL)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()

	t.Setenv("PAINRADAR_WORKERS", "many")
	t.Setenv("PAINRADAR_DEADLINE", "soon")

	loadEnv(&cfg)

	if cfg.Aggregation.Workers != 5 {
		t.Errorf("invalid int should be ignored, got %d", cfg.Aggregation.Workers)
	}
	if cfg.Aggregation.Deadline != 45*time.Second {
		t.Errorf("invalid duration should be ignored, got %v", cfg.Aggregation.Deadline)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server.port"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"nats cache without url", func(c *Config) { c.Cache.Backend = "nats"; c.NATS.URL = "" }, "nats.url"},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "mongo" }, "ledger.backend"},
		{"zero workers", func(c *Config) { c.Aggregation.Workers = 0 }, "workers"},
		{"zero retries", func(c *Config) { c.Summarizer.MaxRetries = 0 }, "max_retries"},
		{"no deadline", func(c *Config) { c.Aggregation.Deadline = 0 }, "deadline"},
		{"unnamed source", func(c *Config) { c.Sources[0].Name = "" }, "name is required"},
		{"duplicate source", func(c *Config) { c.Sources[1].Name = c.Sources[0].Name }, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromUsesAllLayers(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "painradar.yaml")
	if err := os.WriteFile(yamlPath, []byte("server:\n  port: \"9000\"\naggregation:\n  workers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAINRADAR_WORKERS", "4")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("yaml layer lost: port %s", cfg.Server.Port)
	}
	if cfg.Aggregation.Workers != 4 {
		t.Errorf("env should win over yaml: workers %d", cfg.Aggregation.Workers)
	}
}
