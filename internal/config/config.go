package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	DataDir         string

	// Scheduling.
	ScheduleTimes    []string // "HH:MM", 24-hour
	ScheduleLocation *time.Location
	RunOnStart       bool
	HistoryLimit     int

	// Upstream sources.
	RequestTimeout    time.Duration
	FallbackEnabled   bool
	UpstreamRateLimit float64 // requests per second per source
	UserAgent         string
	SourcesFile       string
	Sources           []SourceOverride

	// Downstream sinks. Each is enabled by its own setting.
	KafkaBrokers     []string
	KafkaSinkTopic   string
	KafkaSinkEnabled bool
	PostgresDSN      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisKey         string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parsePositiveDuration("REQUEST_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	scheduleTimes, err := parseScheduleTimes(sharedcfg.EnvOrDefault("SCHEDULE_TIMES", "00:00,06:00,12:00,18:00"))
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("SCHEDULE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}

	historyLimit, err := parsePositiveInt("HISTORY_LIMIT", 50)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("UPSTREAM_RATE_LIMIT", "2"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid UPSTREAM_RATE_LIMIT")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	runOnStart, err := parseBool("RUN_ON_START", true)
	if err != nil {
		return nil, err
	}
	fallbackEnabled, err := parseBool("UPSTREAM_FALLBACK_ENABLED", true)
	if err != nil {
		return nil, err
	}
	kafkaSinkEnabled, err := parseBool("SINK_KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	mapboxCacheSize := parseMapboxCacheSize()

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data"),

		ScheduleTimes:    scheduleTimes,
		ScheduleLocation: loc,
		RunOnStart:       runOnStart,
		HistoryLimit:     historyLimit,

		RequestTimeout:    requestTimeout,
		FallbackEnabled:   fallbackEnabled,
		UpstreamRateLimit: rateLimit,
		UserAgent:         sharedcfg.EnvOrDefault("UPSTREAM_USER_AGENT", "orca-sightings-etl/1.0 (+https://github.com/couchcryptid/orca-sightings-etl)"),
		SourcesFile:       os.Getenv("SOURCES_FILE"),

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "whale-sightings"),
		KafkaSinkEnabled: kafkaSinkEnabled,
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		RedisKey:         sharedcfg.EnvOrDefault("REDIS_KEY", "sightings:latest"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaSinkEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when SINK_KAFKA_ENABLED is true")
	}
	if cfg.KafkaSinkEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when SINK_KAFKA_ENABLED is true")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	if cfg.SourcesFile != "" {
		cfg.Sources, err = LoadSources(cfg.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("SOURCES_FILE: %w", err)
		}
	}

	return cfg, nil
}

func parseScheduleTimes(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := time.Parse("15:04", part); err != nil {
			return nil, fmt.Errorf("invalid SCHEDULE_TIMES entry %q", part)
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil, errors.New("SCHEDULE_TIMES must list at least one HH:MM time")
	}
	return out, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
