package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/storemonitor/internal/controllers/restserver"
	"github.com/chrissnell/storemonitor/internal/log"
	"github.com/chrissnell/storemonitor/internal/managers"
	"github.com/chrissnell/storemonitor/internal/monitor"
	"github.com/chrissnell/storemonitor/internal/report"
	"github.com/chrissnell/storemonitor/internal/telemetry"
	"github.com/chrissnell/storemonitor/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	policy, err := monitor.PolicyByName(a.config.Monitor.Extrapolation)
	if err != nil {
		return err
	}

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, a.config.Storage, a.logger)
	if err != nil {
		return err
	}
	defer storageManager.Close()

	store := storageManager.Store
	metrics := telemetry.New()

	mon := monitor.New(store, store, store, monitor.Options{
		DefaultTimezone:    a.config.Monitor.DefaultTimezone,
		Extrapolation:      policy,
		OpenOnUnlistedDays: a.config.Monitor.OpenOnUnlistedDays,
	}, a.logger)

	generator := report.NewGenerator(ctx, &wg, store, store, mon, report.Options{
		OutputDir: a.config.Report.OutputDir,
		Workers:   a.config.Report.Workers,
		Timeout:   a.config.Report.Timeout,
	}, metrics, a.logger)

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.config, restserver.Services{
		Generator:    generator,
		Reports:      store,
		Health:       storageManager.Health,
		Metrics:      metrics,
		HealthMaxAge: 3 * managers.HealthCheckInterval,
	}, a.logger)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return fmt.Errorf("error starting controllers: %w", err)
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()
	generator.Close()

	// Wait for all workers to terminate; in-flight reports are marked failed on the way out
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
