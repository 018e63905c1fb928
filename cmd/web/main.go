package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"ctr-dashboard/internal/config"
	"ctr-dashboard/internal/dataset"
	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/middleware"
	"ctr-dashboard/internal/observability"
	"ctr-dashboard/internal/server"
	"ctr-dashboard/internal/services"
)

const version = "1.0.0"

func newHandler(cfg *config.Config, analytics *services.Analytics, logger *slog.Logger) http.Handler {
	srv := server.NewServer(analytics, format.New(cfg.Display.Format), logger)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"csv_file", cfg.Dataset.CSVFile,
		"display", cfg.Display.Format.String(),
	)

	analytics := services.NewAnalytics(
		services.WithTopN(cfg.Display.TopN),
		services.WithLogger(logger),
	)

	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.Dataset.LoadTimeout)
	err = analytics.LoadFromCSV(loadCtx, cfg.Dataset.CSVFile)
	cancel()
	if err != nil {
		logger.Error("failed to load CSV data", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server.ShutdownTimeout)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Dataset.Watch {
		watcher, err := dataset.NewWatcher(cfg.Dataset.CSVFile, cfg.Dataset.WatchDebounce, logger, func(ctx context.Context) {
			reloadCtx, cancel := context.WithTimeout(ctx, cfg.Dataset.LoadTimeout)
			defer cancel()
			analytics.Reload(reloadCtx)
		})
		if err != nil {
			logger.Error("failed to create dataset watcher", "error", err)
			os.Exit(1)
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("dataset watching disabled", "error", err)
		}
		gracefulServer.RegisterShutdownHook(func(context.Context) error {
			logger.Info("stopping dataset watcher")
			return watcher.Stop()
		})
	}

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
