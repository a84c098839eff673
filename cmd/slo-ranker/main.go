package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/slo-ranker/internal/api"
	"github.com/miradorstack/slo-ranker/internal/cache"
	"github.com/miradorstack/slo-ranker/internal/config"
	"github.com/miradorstack/slo-ranker/internal/engine"
	"github.com/miradorstack/slo-ranker/internal/metrics"
	"github.com/miradorstack/slo-ranker/internal/repo"
	"github.com/miradorstack/slo-ranker/internal/services"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting slo-ranker",
		slog.String("address", cfg.Server.Address),
		slog.String("analyzer", cfg.Analysis.Kind),
		slog.String("cache", cfg.Cache.Backend))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	opts, err := engine.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		logger.Error("invalid analysis settings", slog.Any("error", err))
		os.Exit(1)
	}
	analyzer, err := engine.New(opts, logger)
	if err != nil {
		logger.Error("failed to build analyzer", slog.Any("error", err))
		os.Exit(1)
	}

	cacheProvider := cache.FromConfig(cfg.Cache, logger)
	defer cacheProvider.Close()

	var source services.MetricsSource
	if cfg.Clients.Core.BaseURL != "" {
		source = repo.NewMiradorCoreClient(cfg.Clients.Core, cacheProvider, cfg.Cache.ServiceGraphTTL, logger)
	} else {
		logger.Warn("mirador-core base URL not configured; requests must carry metrics tables inline")
	}

	rankingService := services.NewRankingService(logger, analyzer, source, cacheProvider, cfg.Cache.ResultTTL)

	server, err := api.NewServer(cfg.Server, rankingService)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("slo-ranker stopped", slog.Duration("p95", rankingService.LatencyP95()))
}
