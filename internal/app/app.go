package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/metrics"
	"github.com/chrissnell/meteodb/internal/pipeline"
	"github.com/chrissnell/meteodb/internal/records"
	"github.com/chrissnell/meteodb/internal/storage"
	"github.com/chrissnell/meteodb/internal/storage/cassandra"
	"github.com/chrissnell/meteodb/internal/storage/jobqueue"
	"github.com/chrissnell/meteodb/internal/storage/timescaledb"
	"github.com/chrissnell/meteodb/pkg/config"
	"go.uber.org/zap"
)

// healthJobQueue names the job queue health monitor. The stores use their
// metrics labels.
const healthJobQueue = "jobqueue"

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run connects to both stores and the job queue, then processes jobs until
// a shutdown signal arrives or ctx ends.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.logger.Infow("configuration loaded",
		"cassandra_hosts", cfg.Cassandra.Hosts,
		"keyspace", cfg.Cassandra.Keyspace,
		"config_read_only", a.configProvider.IsReadOnly())
	poll, _ := cfg.Worker.PollDuration()
	healthInterval, _ := cfg.Worker.HealthDuration()

	wc, err := cassandra.New(ctx, cfg.Cassandra)
	if err != nil {
		return err
	}
	defer wc.Close()

	rl, err := timescaledb.New(ctx, cfg.TimescaleDB)
	if err != nil {
		return err
	}
	defer rl.Close()

	queue, err := jobqueue.New(ctx, cfg.JobQueueDB())
	if err != nil {
		return err
	}
	defer queue.Close()

	sink := a.healthSink()
	storage.StartHealthMonitor(ctx, sink, metrics.StoreWideColumn, wc, healthInterval)
	storage.StartHealthMonitor(ctx, sink, metrics.StoreRelational, rl, healthInterval)
	storage.StartHealthMonitor(ctx, sink, healthJobQueue, queue, healthInterval)

	p := pipeline.New(wc, rl, storage.NewDualWriter(wc, rl), records.NewEngine(rl))

	if cfg.Worker.MetricsListen != "" {
		monitors := []string{metrics.StoreWideColumn, metrics.StoreRelational, healthJobQueue}
		NewStatusServer(cfg.Worker.MetricsListen, storage.GlobalHealthManager, monitors, queue).Start(ctx)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		NewWorker(queue, p, poll).Run(ctx)
	}()

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

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// healthSink records health in the process-wide manager and, when the
// configuration backend can persist it, in the backend too.
func (a *App) healthSink() storage.HealthSink {
	sinks := storage.Fanout{storage.GlobalHealthManager}
	if persistent, ok := a.configProvider.(storage.HealthSink); ok {
		sinks = append(sinks, persistent)
	}
	return sinks
}
