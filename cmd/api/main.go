package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookbite/internal/api"
	"bookbite/internal/catalog"
	"bookbite/internal/config"
	"bookbite/internal/database"
	"bookbite/internal/domain"
	"bookbite/internal/engine"
	"bookbite/internal/events"
	"bookbite/internal/logging"
	"bookbite/internal/metrics"
	"bookbite/internal/repository"
	"bookbite/internal/service"
	"bookbite/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "api-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, base)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Database.Backup, logging.Component(base, "backup"))
		go backups.Start(ctx)
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	cache := initSnapshotCache(cfg, redisClient, base)

	bus := events.NewEventBus()
	bus.Subscribe("*", events.LogHandler(logging.Component(base, "events")))
	if cfg.Notify.Enabled {
		notifyLogger := logging.Component(base, "notify")
		notifier := worker.NewNotifyWorker(worker.NewLogNotifier(notifyLogger), redisClient, cfg.Notify, notifyLogger)
		bus.Subscribe("*", notifier.Handle)
		go notifier.Start(ctx)
	}

	svc, err := initService(cfg, db, cache, bus, base)
	if err != nil {
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, base)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, svc, base)
		if err != nil {
			return err
		}
	}

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, httpServer, grpcServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, base *zerolog.Logger) (*database.DB, error) {
	logger := logging.Component(base, "database")
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if cfg.Catalog.Seed && cfg.Catalog.Path != "" {
		c, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			logger.Error().Err(err).Str("catalog_path", cfg.Catalog.Path).Msg("load catalog")
			_ = db.Close()
			return nil, err
		}
		if err := c.Seed(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initSnapshotCache prefers redis and keeps an in-process cache as fallback.
func initSnapshotCache(cfg *config.Config, client *redis.Client, base *zerolog.Logger) domain.SnapshotCache {
	memory := repository.NewMemorySnapshotCache(cfg.Redis.SnapshotTTL)
	if client == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotCache(client, cfg.Redis.SnapshotTTL)
	return repository.NewFailoverSnapshotCache(primary, memory, logging.Component(base, "snapshot-cache"))
}

func initService(
	cfg *config.Config,
	db *database.DB,
	cache domain.SnapshotCache,
	bus *events.EventBus,
	base *zerolog.Logger,
) (*service.ReservationService, error) {
	policy, err := cfg.ToPolicy()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var opts []engine.Option
	if cfg.Monitoring.PrometheusEnabled {
		opts = append(opts, engine.WithObserver(metrics.EngineObserver{}))
	}
	eng, err := engine.New(policy, base, opts...)
	if err != nil {
		return nil, err
	}

	return service.NewReservationService(db, cache, bus, eng, loc, logging.Component(base, "reservations")), nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

// startServers runs the HTTP API and, when configured, the gRPC API until ctx
// is cancelled or either server fails.
func startServers(ctx context.Context, httpServer *api.HTTPServer, grpcServer *api.GRPCServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 2)
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Int("grpc_port", cfg.API.GRPC.Port).Msg("API server started")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("API server stopped")
	return serveErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
