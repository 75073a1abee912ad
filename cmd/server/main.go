package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/liamwears/marquee/internal/browse"
	"github.com/liamwears/marquee/internal/config"
	"github.com/liamwears/marquee/internal/database"
	"github.com/liamwears/marquee/internal/handlers"
	"github.com/liamwears/marquee/internal/middleware"
	"github.com/liamwears/marquee/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	zl, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	if err := run(cfg, logger); err != nil {
		logger.Fatalw("Server stopped with error", "error", err)
	}
}

// newLogger uses the human-readable development encoder locally and JSON
// everywhere else (production, staging)
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Infow("Starting Marquee server", "env", cfg.Server.Env)

	// Redis is optional; without it rate limiting is off
	var (
		redisClient *database.RedisClient
		limiter     middleware.Limiter
		redisHealth handlers.HealthChecker
	)
	if cfg.Redis.Enabled {
		client, err := database.NewRedisClient(context.Background(), database.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       0,
			TLS:      cfg.Redis.TLS,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		defer client.Close()

		redisClient = client
		limiter = middleware.NewRedisLimiter(redisClient.Client, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
		redisHealth = redisClient
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize services
	tmdbService := services.NewTMDBService(services.TMDBConfig{
		APIKey:            cfg.TMDB.APIKey,
		BaseURL:           cfg.TMDB.BaseURL,
		ImageBaseURL:      cfg.TMDB.ImageBaseURL,
		Language:          cfg.TMDB.Language,
		Timeout:           cfg.TMDB.Timeout,
		RequestsPerSecond: cfg.TMDB.RequestsPerSecond,
		Burst:             cfg.TMDB.Burst,
	}, services.NewTMDBMetrics(registry), logger.Named("tmdb"))

	sessions := browse.NewRegistry(tmdbService, browse.RegistryConfig{
		MaxSessions: cfg.Browse.MaxSessions,
		TTL:         cfg.Browse.SessionTTL,
		Controller: browse.Options{
			DebounceDelay: cfg.Browse.DebounceDelay,
			FetchTimeout:  cfg.Browse.FetchTimeout,
		},
	}, logger.Named("browse"))
	defer sessions.Close()

	// Initialize renderer
	renderer, err := handlers.NewRenderer(tmdbService.ImageURL, logger)
	if err != nil {
		return fmt.Errorf("initialize renderer: %w", err)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Browse:      handlers.NewBrowseHandler(renderer, logger),
		Pages:       handlers.NewPageHandler(tmdbService, renderer, logger),
		Movies:      handlers.NewMovieHandler(tmdbService, logger),
		Health:      handlers.NewHealthHandler(redisHealth),
		Sessions:    middleware.NewSessionMiddleware(sessions, "session", cfg.IsProduction()),
		RateLimiter: middleware.NewRateLimiter(limiter, cfg.IsProduction(), logger.Named("ratelimit")),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		TrustProxy:  cfg.Server.TrustProxy,
		Logger:      logger.Named("http"),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Infow("Server listening", "addr", srv.Addr, "host", cfg.Server.Host)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Infow("Shutting down server", "signal", sig.String())
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
