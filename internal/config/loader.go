package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "painradar.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// PAINRADAR_CONFIG overrides the YAML path; a missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("PAINRADAR_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg. A sources list
// in the file replaces the default sources entirely.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PAINRADAR_PORT")
	setString(&cfg.Server.CORSOrigin, "PAINRADAR_CORS_ORIGIN")
	setFloat64(&cfg.Server.RateLimit, "PAINRADAR_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "PAINRADAR_RATE_BURST")
	setString(&cfg.Logging.Level, "PAINRADAR_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PAINRADAR_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PAINRADAR_LOG_ASYNC")

	// Cache
	setString(&cfg.Cache.Backend, "PAINRADAR_CACHE_BACKEND")
	setInt64(&cfg.Cache.L1MaxSizeMB, "PAINRADAR_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "PAINRADAR_CACHE_L1_TTL")
	setString(&cfg.Cache.SQLitePath, "PAINRADAR_CACHE_SQLITE_PATH")
	setDuration(&cfg.Cache.SweepInterval, "PAINRADAR_CACHE_SWEEP_INTERVAL")
	setString(&cfg.Cache.NATSBucket, "PAINRADAR_CACHE_NATS_BUCKET")
	setString(&cfg.Cache.RedisAddr, "PAINRADAR_REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "PAINRADAR_REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "PAINRADAR_REDIS_DB")

	// Summarizer
	setString(&cfg.Summarizer.URL, "PAINRADAR_LLM_URL")
	setString(&cfg.Summarizer.Model, "PAINRADAR_LLM_MODEL")
	setList(&cfg.Summarizer.Credentials, "PAINRADAR_LLM_KEYS")
	setDuration(&cfg.Summarizer.Cooldown, "PAINRADAR_LLM_COOLDOWN")
	setInt(&cfg.Summarizer.MaxRetries, "PAINRADAR_LLM_MAX_RETRIES")
	setDuration(&cfg.Summarizer.AttemptTimeout, "PAINRADAR_LLM_ATTEMPT_TIMEOUT")
	setDuration(&cfg.Summarizer.Backoff, "PAINRADAR_LLM_BACKOFF")
	setInt(&cfg.Summarizer.MaxTokens, "PAINRADAR_LLM_MAX_TOKENS")
	setFloat64(&cfg.Summarizer.Temperature, "PAINRADAR_LLM_TEMPERATURE")
	setInt(&cfg.Summarizer.CorpusBudget, "PAINRADAR_LLM_CORPUS_BUDGET")
	setDuration(&cfg.Summarizer.SummaryTTL, "PAINRADAR_SUMMARY_TTL")
	setBool(&cfg.Summarizer.SummarizeEmpty, "PAINRADAR_SUMMARIZE_EMPTY")

	// Aggregation
	setInt(&cfg.Aggregation.Workers, "PAINRADAR_WORKERS")
	setDuration(&cfg.Aggregation.Deadline, "PAINRADAR_DEADLINE")
	setInt(&cfg.Aggregation.DefaultLimit, "PAINRADAR_DEFAULT_LIMIT")

	setString(&cfg.Ledger.Backend, "PAINRADAR_LEDGER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PAINRADAR_PG_MAX_CONNS")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Subscribe, "PAINRADAR_NATS_SUBSCRIBE")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "PAINRADAR_OTEL_INSECURE")
	setBool(&cfg.MCP.Enabled, "PAINRADAR_MCP_ENABLED")
	setString(&cfg.MCP.APIKey, "PAINRADAR_MCP_API_KEY")
	setString(&cfg.Browser.RemoteURL, "PAINRADAR_BROWSER_URL")
}

// validate checks that required fields are set and values are usable.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Cache.Backend {
	case "sqlite", "none":
	case "nats":
		if cfg.NATS.URL == "" {
			return errors.New("cache.backend nats requires nats.url")
		}
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return errors.New("cache.backend redis requires cache.redis_addr")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of sqlite|nats|redis|none", cfg.Cache.Backend)
	}
	switch cfg.Ledger.Backend {
	case "sqlite", "none":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("ledger.backend postgres requires postgres.dsn")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("ledger.backend %q is not one of sqlite|postgres|none", cfg.Ledger.Backend)
	}
	if cfg.Summarizer.URL == "" {
		return errors.New("summarizer.url is required")
	}
	if cfg.Summarizer.MaxRetries < 1 {
		return errors.New("summarizer.max_retries must be >= 1")
	}
	if cfg.Aggregation.Workers < 1 {
		return errors.New("aggregation.workers must be >= 1")
	}
	if cfg.Aggregation.Deadline <= 0 {
		return errors.New("aggregation.deadline must be > 0")
	}
	if cfg.Aggregation.DefaultLimit < 1 {
		return errors.New("aggregation.default_limit must be >= 1")
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if s.Kind == "" {
			return fmt.Errorf("sources[%d].kind is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Limit < 0 {
			return fmt.Errorf("sources[%d].limit must be >= 0", i)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma-separated value, dropping blank entries.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
