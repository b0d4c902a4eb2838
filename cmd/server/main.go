package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "placefinder/discoveryservice/internal/api/http"
	"placefinder/discoveryservice/internal/app"
	"placefinder/discoveryservice/internal/cursor"
	"placefinder/discoveryservice/internal/discover"
	"placefinder/discoveryservice/internal/domain"
	"placefinder/discoveryservice/internal/engine"
	"placefinder/discoveryservice/internal/metrics"
	"placefinder/discoveryservice/internal/promos"
	"placefinder/discoveryservice/internal/providers/googleplaces"
	"placefinder/discoveryservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	if cfg.PlacesAPIKey == "" {
		logger.Error("PLACES_API_KEY is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.Init(context.Background(), "places-discovery")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "places-discovery"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("placesBaseURL", cfg.PlacesBaseURL),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cursorTTL", cfg.CursorTTL),
	)

	placesClient := googleplaces.NewClient(googleplaces.Config{
		APIKey:    cfg.PlacesAPIKey,
		BaseURL:   cfg.PlacesBaseURL,
		UserAgent: cfg.UserAgent,
		Client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})

	redisClient := connectRedis(cfg, logger)

	var promoStore promos.Store
	var cursorStore cursor.Store
	serviceOpts := []discover.ServiceOption{discover.WithLogger(logger)}
	if redisClient != nil {
		promoStore = promos.NewRedisStore(redisClient)
		cursorStore = cursor.NewRedisStore(redisClient, cfg.CursorTTL)
		serviceOpts = append(serviceOpts,
			discover.WithLocker(cursor.NewRedisLocker(redisClient, cfg.LockTTL, logger)))
	} else {
		promoStore = promos.NewMemoryStore()
		memoryStore := cursor.NewMemoryStore(cfg.CursorTTL)
		defer memoryStore.Close()
		cursorStore = memoryStore
	}

	hydrator := engine.NewPromoHydrator(promoStore, logger)
	searchEngine := engine.New(placesClient, hydrator,
		engine.WithLogger(logger),
		engine.WithProviderQPS(cfg.ProviderQPS, cfg.ProviderBurst),
	)
	discoverService := discover.NewService(searchEngine, cursorStore, serviceOpts...)

	handler := apihttp.NewServer(discoverService,
		apihttp.WithLogger(logger),
		apihttp.WithProviderCheck(func() map[string]bool {
			return map[string]bool{
				string(domain.StreamNearby): searchEngine.ProviderAvailable(domain.StreamNearby),
				string(domain.StreamText):   searchEngine.ProviderAvailable(domain.StreamText),
			}
		}),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Prefetch searches can legitimately run tens of seconds; rely on
		// the request timeout wired into the provider client.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("places discovery service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("places discovery service stopped")
}

func connectRedis(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		logger.Info("redis not configured, using in-memory stores")
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory stores", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory stores", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
