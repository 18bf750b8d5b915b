package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "CandleHist/internal/domain/repository"
	"CandleHist/internal/usecase"
	"CandleHist/pkg/config"
	xhttp "CandleHist/pkg/http"
	pkgkafka "CandleHist/pkg/kafka"
	applogger "CandleHist/pkg/logger"
)

const (
	cacheSnapshotName = "candlesCache"
	queueSnapshotName = "persistenceQueue"
)

// App encapsulates the entire application lifecycle: snapshot restore, feed
// start, write-behind persistence, HTTP serving, and ordered shutdown.
type App struct {
	cfg *config.Config
	l   *applogger.Logger

	queue     *usecase.PersistenceQueue
	monitor   *usecase.QueueMonitor
	cache     domrepo.StateHolder
	snapshots *usecase.SnapshotSerializer

	collector   *usecase.FeedCollector
	consumer    *pkgkafka.Consumer
	feedHandler pkgkafka.MessageHandler

	table       domrepo.TableStorage
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	queue *usecase.PersistenceQueue,
	monitor *usecase.QueueMonitor,
	cache domrepo.StateHolder,
	snapshots *usecase.SnapshotSerializer,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	feedHandler pkgkafka.MessageHandler,
	table domrepo.TableStorage,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		queue:       queue,
		monitor:     monitor,
		cache:       cache,
		snapshots:   snapshots,
		collector:   collector,
		consumer:    consumer,
		feedHandler: feedHandler,
		table:       table,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.restoreSnapshots(ctx)

	a.queue.Start(ctx)
	a.monitor.Start(ctx)

	// Start feed
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.l.Error("feed collector error", applogger.Error(err))
			}
		}()
		a.l.Info("feed collector started",
			applogger.Strings("assetPairs", a.cfg.Storage.AssetPairs))
	}
	if a.consumer != nil && a.feedHandler != nil {
		a.consumer.RegisterHandler(a.feedHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.feedHandler.Topic()))
	}

	// Start HTTP server
	serverOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithRequestMetrics(a.l, time.Second))
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, serverOpts...)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops the feed first so no new candles arrive, then flushes the
// persistence queue, snapshots the remaining in-memory state, and closes the
// storage backend.
func (a *App) shutdown(ctx context.Context) error {
	if a.collector != nil {
		if err := a.collector.Stop(); err != nil {
			a.l.Warn("feed collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	a.monitor.Stop()
	a.queue.Stop(shutdownCtx)

	a.saveSnapshots(shutdownCtx)

	if a.table != nil {
		if err := a.table.Close(); err != nil {
			a.l.Warn("storage close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}

func (a *App) restoreSnapshots(ctx context.Context) {
	if a.snapshots == nil {
		return
	}
	if err := a.snapshots.Deserialize(ctx, cacheSnapshotName, a.cache); err != nil {
		a.l.Error("cache snapshot restore failed", applogger.Error(err))
	}
	if err := a.snapshots.Deserialize(ctx, queueSnapshotName, a.queue); err != nil {
		a.l.Error("queue snapshot restore failed", applogger.Error(err))
	}
}

func (a *App) saveSnapshots(ctx context.Context) {
	if a.snapshots == nil {
		return
	}
	if err := a.snapshots.Serialize(ctx, cacheSnapshotName, a.cache); err != nil {
		a.l.Error("cache snapshot save failed", applogger.Error(err))
	}
	if err := a.snapshots.Serialize(ctx, queueSnapshotName, a.queue); err != nil {
		a.l.Error("queue snapshot save failed", applogger.Error(err))
	}
}
