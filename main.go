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

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/replayer/internal/adapter/cache"
	"github.com/xiaot623/gogo/replayer/internal/adapter/tracesource"
	"github.com/xiaot623/gogo/replayer/internal/config"
	"github.com/xiaot623/gogo/replayer/internal/policy"
	store "github.com/xiaot623/gogo/replayer/internal/repository"
	"github.com/xiaot623/gogo/replayer/internal/service"
	"github.com/xiaot623/gogo/replayer/internal/telemetry"
	internalhttp "github.com/xiaot623/gogo/replayer/internal/transport/http"
	"github.com/xiaot623/gogo/replayer/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("replayer exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	logger := slog.Default().With("component", "main")
	logger.Info("starting replayer", "http_port", cfg.HTTPPort, "database", cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	shutdownMetrics, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "replayer")
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Warn("failed to flush metrics", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	var remote service.TraceSource
	if cfg.TraceAPIURL != "" {
		remote = tracesource.NewClient(cfg.TraceAPIURL, cfg.TraceAPIToken, cfg.TraceFetchTimeout, cfg.TraceFetchRetries)
		logger.Info("replay data fetched from trace API", "url", cfg.TraceAPIURL)
	}

	var replayCache service.ReplayCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.ReplayCacheTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize replay cache: %w", err)
		}
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("replay cache unreachable, continuing", "error", err)
		}
		replayCache = redisCache
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Initialize service
	svc := service.New(db, remote, replayCache, cfg, policyEngine, metrics)
	defer svc.Close()

	hub := ws.NewHub()
	server := internalhttp.NewServer(svc, ws.NewServer(cfg, hub, svc))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		svc.RunSessionReaper(gctx)
		return nil
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down replayer")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown http server gracefully", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("replayer stopped")
	return err
}
