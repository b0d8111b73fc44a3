package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnv             = "development"
	defaultIntervalSeconds = 60
	defaultCommitInterval  = 100
	defaultWorkers         = 1
	defaultRedisDB         = 0
	defaultLockTTLSeconds  = 3600
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultLogOutput       = "stdout"
	defaultLogMaxAgeDays   = 7
)

// Config keeps the runtime configuration of the snapshot generator.
type Config struct {
	Env      string
	Postgres PostgresConfig
	Snapshot SnapshotConfig
	Redis    RedisConfig
	Log      LogConfig
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// SnapshotConfig controls the generator run.
type SnapshotConfig struct {
	Interval       time.Duration
	CommitInterval int
	Workers        int
	Exchanges      []string
	// Cutoff is zero when the run should stop at the current time.
	Cutoff      time.Time
	AutoMigrate bool
}

// RedisConfig stores Redis connection parameters for the run lock. An empty
// Addr disables the lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// LogConfig selects level, format and destination of the logs.
type LogConfig struct {
	Level      string
	Format     string
	Output     string
	MaxAgeDays int
}

// Load builds Config from environment variables.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	interval, err := getInt("SNAPSHOT_INTERVAL_SECONDS", defaultIntervalSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse SNAPSHOT_INTERVAL_SECONDS: %w", err)
	}
	commitInterval, err := getInt("SNAPSHOT_COMMIT_INTERVAL", defaultCommitInterval)
	if err != nil {
		return nil, fmt.Errorf("parse SNAPSHOT_COMMIT_INTERVAL: %w", err)
	}
	workers, err := getInt("SNAPSHOT_WORKERS", defaultWorkers)
	if err != nil {
		return nil, fmt.Errorf("parse SNAPSHOT_WORKERS: %w", err)
	}
	cutoff, err := getTime("SNAPSHOT_CUTOFF")
	if err != nil {
		return nil, fmt.Errorf("parse SNAPSHOT_CUTOFF: %w", err)
	}
	autoMigrate, err := getBool("SNAPSHOT_AUTO_MIGRATE", false)
	if err != nil {
		return nil, fmt.Errorf("parse SNAPSHOT_AUTO_MIGRATE: %w", err)
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	lockTTL, err := getInt("RUN_LOCK_TTL_SECONDS", defaultLockTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse RUN_LOCK_TTL_SECONDS: %w", err)
	}
	maxAge, err := getInt("LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_MAX_AGE_DAYS: %w", err)
	}

	cfg := &Config{
		Env: getString("APP_ENV", defaultEnv),
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Snapshot: SnapshotConfig{
			Interval:       time.Duration(interval) * time.Second,
			CommitInterval: commitInterval,
			Workers:        workers,
			Exchanges:      getList("SNAPSHOT_EXCHANGES"),
			Cutoff:         cutoff,
			AutoMigrate:    autoMigrate,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			LockTTL:  time.Duration(lockTTL) * time.Second,
		},
		Log: LogConfig{
			Level:      getString("LOG_LEVEL", defaultLogLevel),
			Format:     getString("LOG_FORMAT", defaultLogFormat),
			Output:     getString("LOG_OUTPUT", defaultLogOutput),
			MaxAgeDays: maxAge,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the generator cannot run with.
func (c *Config) Validate() error {
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", c.Snapshot.Interval)
	}
	if c.Snapshot.CommitInterval <= 0 {
		return fmt.Errorf("snapshot commit interval must be positive, got %d", c.Snapshot.CommitInterval)
	}
	if c.Snapshot.Workers <= 0 {
		return fmt.Errorf("snapshot workers must be positive, got %d", c.Snapshot.Workers)
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("run lock ttl must be positive, got %s", c.Redis.LockTTL)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// CutoffOrNow returns the configured cutoff, or now when none is set.
func (s SnapshotConfig) CutoffOrNow(now time.Time) time.Time {
	if s.Cutoff.IsZero() {
		return now
	}
	return s.Cutoff
}

// ParseCutoff parses an RFC3339 timestamp into UTC.
func ParseCutoff(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("cutoff %q is not RFC3339: %w", value, err)
	}
	return t.UTC(), nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("convert %s value %q to bool: %w", key, value, err)
	}
	return parsed, nil
}

func getTime(key string) (time.Time, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return time.Time{}, nil
	}
	return ParseCutoff(value)
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
