package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shelfpod/internal/config"
	"shelfpod/internal/courier"
	"shelfpod/internal/httpapi"
	"shelfpod/internal/kitchen"
	"shelfpod/internal/observability"
	"shelfpod/internal/order"
	"shelfpod/internal/pod"
	"shelfpod/internal/shelves"
)

func main() {
	configFile := flag.String("config", "config.json", "Path to configuration file")
	manifestFile := flag.String("orders", "orders.json", "Path to order manifest JSON file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	shelfList := make([]shelves.Shelf, 0, len(cfg.Shelves))
	for _, sc := range cfg.Shelves {
		shelfList = append(shelfList, shelves.New(sc.ID, sc.Capacity, order.Temperature(sc.Temperature), sc.DecayRateFactor))
	}

	shelfPod, err := pod.New(shelfList, pod.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to build shelf pod", zap.Error(err))
	}

	stats := observability.NewStatsObserver(logger)
	shelfPod.AddObserver(stats)

	manifest, err := kitchen.LoadManifest(*manifestFile)
	if err != nil {
		logger.Fatal("failed to load order manifest", zap.Error(err))
	}
	producer := kitchen.NewProducer(shelfPod, manifest, cfg.OrdersPerSecond, kitchen.WithLogger(logger))
	dispatcher := courier.NewDispatcher(shelfPod, courier.WithLogger(logger))
	server := httpapi.NewServer(shelfPod, httpapi.WithStatsObserver(stats), httpapi.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.SimulationSeconds > 0 {
		var durationCancel context.CancelFunc
		ctx, durationCancel = context.WithTimeout(ctx, time.Duration(cfg.SimulationSeconds)*time.Second)
		defer durationCancel()
	}

	shelfPod.StartBackgroundActivities(ctx)
	go producer.Run(ctx)
	go dispatcher.Run(ctx)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Handler()}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("simulation duration elapsed, shutting down")
	case <-stop:
		logger.Info("received interrupt signal, shutting down")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	shelfPod.StopBackgroundActivities()
	logger.Info("shutdown complete")
}
