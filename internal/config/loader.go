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
const DefaultConfigFile = "taskforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
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

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
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
	setString(&cfg.Server.Port, "TASKFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "TASKFORGE_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "TASKFORGE_REQUEST_TIMEOUT")

	setString(&cfg.Storage.Driver, "TASKFORGE_STORAGE_DRIVER")
	setString(&cfg.Storage.SQLitePath, "TASKFORGE_SQLITE_PATH")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TASKFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TASKFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TASKFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TASKFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TASKFORGE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "TASKFORGE_NATS_ENABLED")
	setString(&cfg.NATS.Stream, "TASKFORGE_NATS_STREAM")

	setInt64(&cfg.Cache.L1MaxSizeMB, "TASKFORGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "TASKFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "TASKFORGE_CACHE_L2_TTL")
	setDuration(&cfg.Cache.DirectoryTTL, "TASKFORGE_CACHE_DIRECTORY_TTL")
	setDuration(&cfg.Idempotency.TTL, "TASKFORGE_IDEMPOTENCY_TTL")

	setString(&cfg.Logging.Level, "TASKFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TASKFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TASKFORGE_LOG_ASYNC")

	setBool(&cfg.OTEL.Enabled, "TASKFORGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "TASKFORGE_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setFloat64(&cfg.OTEL.SampleRate, "TASKFORGE_OTEL_SAMPLE_RATE")

	setInt(&cfg.Breaker.MaxFailures, "TASKFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TASKFORGE_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "TASKFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "TASKFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "TASKFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "TASKFORGE_RATE_MAX_IDLE_TIME")

	setInt(&cfg.Engine.ConflictRetries, "TASKFORGE_ENGINE_CONFLICT_RETRIES")
	setInt(&cfg.Engine.HistoryPageSize, "TASKFORGE_ENGINE_HISTORY_PAGE_SIZE")
	setStrings(&cfg.Engine.NotifyActions, "TASKFORGE_NOTIFY_ACTIONS")
	setInt(&cfg.Engine.NotifyConcurrency, "TASKFORGE_NOTIFY_CONCURRENCY")
	setDuration(&cfg.Engine.NotifyTimeout, "TASKFORGE_NOTIFY_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required")
		}
	default:
		return fmt.Errorf("storage.driver must be postgres or sqlite, got %q", cfg.Storage.Driver)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be between 0 and 1")
	}
	if cfg.Engine.ConflictRetries < 0 {
		return errors.New("engine.conflict_retries must be >= 0")
	}
	if cfg.Engine.HistoryPageSize < 1 {
		return errors.New("engine.history_page_size must be >= 1")
	}
	if cfg.Engine.NotifyConcurrency < 1 {
		return errors.New("engine.notify_concurrency must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStrings(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*dst = out
	}
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
