package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glomail/maild/internal/config"
	"github.com/glomail/maild/internal/logging"
	"github.com/glomail/maild/internal/maild"
	"github.com/glomail/maild/internal/metrics"
	"github.com/glomail/maild/internal/server"
	"github.com/glomail/maild/internal/store"
)

func runServe(cfg config.Config) error {
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		collector = metrics.NewPrometheusCollector(registry)

		var metricsServer metrics.Server = metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path, registry)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
	}

	st, err := store.New(cfg.DataDir, cfg.Hostname)
	if err != nil {
		return err
	}

	router := maild.NewRouter(maild.NewAuth(st), st, maild.NewTable(), collector)

	srv, err := server.New(server.Config{
		Cfg:       &cfg,
		Logger:    logger,
		Collector: collector,
	})
	if err != nil {
		return err
	}
	srv.SetHandler(router)

	logger.Info("starting maild",
		"domain", cfg.Hostname,
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
	)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("maild stopped")
	return nil
}
