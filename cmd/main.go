package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/Dosada05/contest-system/brackets"
	"github.com/Dosada05/contest-system/cache"
	"github.com/Dosada05/contest-system/config"
	"github.com/Dosada05/contest-system/db"
	"github.com/Dosada05/contest-system/handlers"
	"github.com/Dosada05/contest-system/metrics"
	"github.com/Dosada05/contest-system/middleware"
	"github.com/Dosada05/contest-system/realtime"
	"github.com/Dosada05/contest-system/repositories"
	api "github.com/Dosada05/contest-system/routes"
	"github.com/Dosada05/contest-system/scheduler"
	"github.com/Dosada05/contest-system/services"
	"github.com/Dosada05/contest-system/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("timezone", cfg.Location.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(cfg.DatabaseURL, db.PoolOptions{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if version, err := db.MigrationVersion(dbConn); err != nil {
		logger.Warn("could not read schema version", slog.Any("error", err))
	} else {
		logger.Info("database connection established", slog.Int64("schema_version", version))
	}

	var viewCache services.ViewCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		viewCache = cache.NewBracketCache(redisClient, cfg.CacheTTL)
		logger.Info("bracket view cache enabled", slog.Duration("ttl", cfg.CacheTTL))
	}

	var archive storage.FileUploader
	if cfg.R2.Enabled() {
		archive, err = storage.NewR2Uploader(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("failed to initialize bracket archive: %w", err)
		}
		logger.Info("bracket archive enabled", slog.String("bucket", cfg.R2.BucketName))
	}

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.NewEngine(registry)

	deps := services.Deps{
		Tx:              services.NewSQLTransactor(dbConn, logger),
		Contests:        repositories.NewPostgresContestRepository(dbConn),
		Members:         repositories.NewPostgresMemberRepository(dbConn),
		Rounds:          repositories.NewPostgresRoundRepository(dbConn),
		Matches:         repositories.NewPostgresMatchRepository(dbConn),
		Engine:          brackets.NewEngine(brackets.WithLogger(logger)),
		Logger:          logger,
		Notifier:        hub,
		Cache:           viewCache,
		Archive:         archive,
		Metrics:         engineMetrics,
		TickParallelism: cfg.TickParallelism,
	}
	contestService := services.NewContestService(deps)
	matchService := services.NewMatchService(deps)

	tickScheduler, err := scheduler.New(cfg.TickSchedule, contestService, cfg.Location, logger)
	if err != nil {
		return err
	}
	tickScheduler.Start(ctx)

	outcomeLimiter := middleware.NewRateLimiter(rate.Every(100*time.Millisecond), 50)
	go outcomeLimiter.RunCleanup(ctx, time.Minute, 10*time.Minute)

	if len(cfg.JWTSecretKey) == 0 {
		logger.Warn("JWT_SECRET_KEY is not set, outcome intake is disabled")
	}
	if cfg.DriverKeyHash == "" {
		logger.Warn("DRIVER_KEY_HASH is not set, driver endpoints are disabled")
	}

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		DriverKeyHash:  cfg.DriverKeyHash,
		AllowedOrigins: cfg.AllowedOrigins,
		OutcomeLimiter: outcomeLimiter,
		Gatherer:       registry,
	},
		handlers.NewContestHandler(contestService, cfg.Today),
		handlers.NewMatchHandler(matchService),
		handlers.NewWebSocketHandler(hub, contestService, cfg.AllowedOrigins, logger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	tickScheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}
