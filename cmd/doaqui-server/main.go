// Package main is the entry point for the Doaqui server.
// Doaqui is a donation marketplace: users list products they want to give
// away, other users schedule a pickup, and either party concludes the
// donation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doaqui/doaqui/internal/auth"
	"github.com/doaqui/doaqui/internal/config"
	"github.com/doaqui/doaqui/internal/handler"
	"github.com/doaqui/doaqui/internal/metrics"
	"github.com/doaqui/doaqui/internal/repository"
	"github.com/doaqui/doaqui/internal/repository/memory"
	"github.com/doaqui/doaqui/internal/repository/postgres"
	"github.com/doaqui/doaqui/internal/repository/redis"
	"github.com/doaqui/doaqui/internal/repository/sqlite"
	"github.com/doaqui/doaqui/internal/service"
	"github.com/doaqui/doaqui/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting Doaqui server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	productRepo, userRepo, closeDB, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// Cache and distributed lock: Redis when enabled, in-process otherwise.
	var (
		cache  repository.Cache
		locker repository.DistributedLock
	)
	if cfg.Redis.Enabled {
		var client *goredis.Client
		client, err = redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		cache = redis.NewCache(client)
		locker = redis.NewLock(client, hostToken())
	} else {
		cache = memory.NewCache()
		locker = memory.NewLock()
	}

	// Image storage
	imageStore, err := setupImageStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Auth
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// Services
	userService := service.NewUserService(userRepo, issuer, logger)
	productService := service.NewProductService(productRepo, userRepo, cache, m, logger)
	listingService := service.NewListingService(productRepo, cache, logger)

	sweeper := service.NewReservationSweeper(productRepo, locker, m, logger, service.SweeperConfig{
		Enabled:        cfg.Sweeper.Enabled,
		Interval:       cfg.Sweeper.Interval,
		ReservationTTL: cfg.Sweeper.ReservationTTL,
	})
	if cfg.Sweeper.Enabled {
		sweeper.Start()
		defer sweeper.Stop()
	}

	// HTTP
	router := handler.NewRouter(handler.RouterConfig{
		ProductHandler: handler.NewProductHandler(productService, listingService, logger),
		UserHandler:    handler.NewUserHandler(userService, logger),
		ImageHandler:   handler.NewImageHandler(imageStore, logger),
		AuthMiddleware: auth.Middleware(issuer, userService, auth.Config{}),
		Metrics:        m,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      http.MaxBytesHandler(router.Handler(), cfg.Server.MaxBodySize),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// setupDatabase opens the configured database, runs migrations and returns
// the repositories with a cleanup function.
func setupDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (
	repository.ProductRepository, repository.UserRepository, func(), error,
) {
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		return sqlite.NewProductRepository(db), sqlite.NewUserRepository(db), func() { db.Close() }, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate postgres database: %w", err)
	}
	return postgres.NewProductRepository(db), postgres.NewUserRepository(db), func() { db.Close() }, nil
}

// setupImageStore creates the configured image storage backend.
func setupImageStore(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.ImageStore, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Store(ctx, cfg.S3, logger)
	default:
		return storage.NewFilesystemStore(cfg.DataDir, logger)
	}
}

// setupLogger configures zerolog from the logging configuration.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat
	logger := zerolog.New(out)
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// hostToken returns a lock token that identifies this instance.
func hostToken() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("doaqui-%d", os.Getpid())
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
