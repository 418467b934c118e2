package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/chromatrace/internal/analysis"
	"github.com/chrissnell/chromatrace/internal/cache"
	"github.com/chrissnell/chromatrace/internal/controllers/restserver"
	"github.com/chrissnell/chromatrace/internal/database"
	"github.com/chrissnell/chromatrace/internal/log"
	"github.com/chrissnell/chromatrace/internal/queue"
	"github.com/chrissnell/chromatrace/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance. cfg must already be validated.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: log.OrNop(logger),
	}
}

// Defaults converts the analysis section of the configuration.
func Defaults(a config.AnalysisData) analysis.Defaults {
	return analysis.Defaults{
		Channel:          a.DefaultChannel,
		E1Percent:        a.E1Percent,
		PathLength:       a.PathLength,
		SmoothingSeconds: a.SmoothingSeconds,
		ReferencePhase:   a.ReferencePhase,
		Titer:            a.DefaultTiter,
		MaxParallelRuns:  a.MaxParallelRuns,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Results database
	db := database.NewClient(a.cfg.Database.ConnectionString, a.logger)
	if err := db.Connect(); err != nil {
		return fmt.Errorf("error connecting to results database: %w", err)
	}
	defer db.Close()
	if a.cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			return err
		}
	}

	checks := map[string]restserver.Pinger{"database": db}

	// Result cache is optional; the service runs uncached if Redis is down
	var svcCache analysis.Cache
	var invalidator restserver.CacheInvalidator
	if a.cfg.Cache.Enabled {
		rc, err := cache.Connect(ctx, cache.Options{
			Addr:     a.cfg.Cache.Addr,
			Password: a.cfg.Cache.Password,
			DB:       a.cfg.Cache.DB,
			TTL:      a.cfg.Cache.TTLDuration(),
		})
		if err != nil {
			a.logger.Warnw("result cache unavailable, continuing without it", "addr", a.cfg.Cache.Addr, "error", err)
		} else {
			defer rc.Close()
			svcCache = rc
			invalidator = rc
			checks["cache"] = rc
		}
	}

	service := analysis.NewService(db.Repository(), svcCache, Defaults(a.cfg.Analysis), a.logger)

	rest, err := restserver.NewController(ctx, &wg, a.cfg.REST, restserver.Backends{
		Analyzer: service,
		Cache:    invalidator,
		Checks:   checks,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	if a.cfg.Queue.Enabled {
		a.startWorker(ctx, cancel, &wg, service)
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

// startWorker runs the Kafka analysis worker. A worker failure shuts the
// whole application down.
func (a *App) startWorker(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, service *analysis.Service) {
	q := a.cfg.Queue
	consumer := queue.NewConsumer(q.Brokers, q.RequestTopic, q.GroupID)
	producer := queue.NewProducer(q.Brokers, q.ResultTopic)
	worker := queue.NewWorker(consumer, producer, service, q.Workers, a.logger)

	a.logger.Infow("starting analysis worker", "brokers", q.Brokers, "topic", q.RequestTopic, "handlers", q.Workers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer producer.Close()
		defer consumer.Close()

		if err := worker.Run(ctx); err != nil {
			a.logger.Errorw("analysis worker stopped", "error", err)
			cancel()
		}
	}()
}
