package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/orca-sightings-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/orca-sightings-etl/internal/adapter/kafka"
	"github.com/couchcryptid/orca-sightings-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/orca-sightings-etl/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/orca-sightings-etl/internal/adapter/redis"
	"github.com/couchcryptid/orca-sightings-etl/internal/adapter/upstream"
	"github.com/couchcryptid/orca-sightings-etl/internal/config"
	"github.com/couchcryptid/orca-sightings-etl/internal/domain"
	"github.com/couchcryptid/orca-sightings-etl/internal/observability"
	"github.com/couchcryptid/orca-sightings-etl/internal/pipeline"
	"github.com/couchcryptid/orca-sightings-etl/internal/scheduler"
	"github.com/couchcryptid/orca-sightings-etl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open data dir", "error", err)
		os.Exit(1)
	}

	adapters, err := upstream.Build(upstream.Options{
		RequestTimeout:  cfg.RequestTimeout,
		RateLimit:       cfg.UpstreamRateLimit,
		UserAgent:       cfg.UserAgent,
		FallbackEnabled: cfg.FallbackEnabled,
		Renderer:        upstream.NewChromeRenderer(cfg.UserAgent),
		Logger:          logger,
		Metrics:         metrics,
	}, cfg.Sources)
	if err != nil {
		logger.Error("failed to build sources", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, closers := buildSinks(ctx, cfg, logger)
	var sink pipeline.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	sources := make([]pipeline.Source, len(adapters))
	for i, a := range adapters {
		sources[i] = a
	}
	transformer := pipeline.NewTransformer(geocoder, logger, metrics)
	orch := pipeline.New(sources, transformer, st, sink, logger, metrics, pipeline.Options{
		HistoryLimit:   cfg.HistoryLimit,
		AdapterTimeout: adapterTimeout(cfg.RequestTimeout, adapters),
	})

	times, err := scheduler.ParseTimes(cfg.ScheduleTimes...)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}
	sched := scheduler.New(orch, st, logger, scheduler.Options{
		Times:      times,
		Location:   cfg.ScheduleLocation,
		RunOnStart: cfg.RunOnStart,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, orch, sched, st, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the daily import schedule.
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler start error", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for name, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "sink", name, "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// buildSinks creates every configured downstream sink. A sink that cannot be
// reached at startup is logged and left out; the import itself still runs.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.MultiSink, map[string]io.Closer) {
	var sinks pipeline.MultiSink
	closers := map[string]io.Closer{}

	if cfg.KafkaSinkEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, w)
		closers[kafkaadapter.Mode] = w
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	if cfg.PostgresDSN != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := postgres.Open(pctx, cfg.PostgresDSN)
		if err == nil {
			s := postgres.NewSink(db, logger)
			if err = s.EnsureSchema(pctx); err == nil {
				sinks = append(sinks, s)
				closers[postgres.Mode] = s
				logger.Info("postgres sink enabled")
			} else {
				_ = s.Close()
			}
		}
		cancel()
		if err != nil {
			logger.Error("postgres sink unavailable", "error", err)
		}
	}

	if cfg.RedisAddr != "" {
		s := redisadapter.NewSink(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey, logger)
		sinks = append(sinks, s)
		closers[redisadapter.Mode] = s
		logger.Info("redis sink enabled", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
	}

	if len(sinks) == 0 {
		logger.Info("no downstream sink configured")
	}
	return sinks, closers
}

// adapterTimeout bounds one source's whole fetch: every candidate may use
// its full request timeout.
func adapterTimeout(perRequest time.Duration, adapters []upstream.Adapter) time.Duration {
	most := 1
	for _, a := range adapters {
		if s, ok := a.(*upstream.Source); ok && len(s.Candidates()) > most {
			most = len(s.Candidates())
		}
	}
	return perRequest*time.Duration(most) + 5*time.Second
}
