package di

import (
	"context"
	"fmt"
	"time"

	"CandleHist/internal/domain/models"
	"CandleHist/internal/domain/repository"
	"CandleHist/internal/handler/api"
	internalrepo "CandleHist/internal/repository"
	"CandleHist/internal/service/assetpairs"
	"CandleHist/internal/service/candlecache"
	"CandleHist/internal/service/feed"
	"CandleHist/internal/service/ratelimit"
	"CandleHist/internal/usecase"
	pkgch "CandleHist/pkg/clickhouse"
	"CandleHist/pkg/config"
	xhttp "CandleHist/pkg/http"
	pkgkafka "CandleHist/pkg/kafka"
	applogger "CandleHist/pkg/logger"
	"CandleHist/pkg/metrics"
	"CandleHist/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Log.Format
	if format == "" {
		format = "json"
	}
	output := cfg.Log.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRowCodec creates the row codec with configured row widths.
func ProvideRowCodec(cfg *config.Config) (*internalrepo.RowCodec, error) {
	overrides := make(map[models.TimeInterval]int64, len(cfg.Storage.TicksPerRow))
	for name, ticks := range cfg.Storage.TicksPerRow {
		interval := models.ParseTimeInterval(name)
		if interval == models.IntervalUnspecified {
			return nil, fmt.Errorf("storage.ticks_per_row: unknown interval %q", name)
		}
		if !interval.IsStored() {
			return nil, fmt.Errorf("storage.ticks_per_row: interval %s is not a stored interval", interval)
		}
		overrides[interval] = int64(ticks)
	}
	return internalrepo.NewRowCodec(overrides), nil
}

// ProvideTableStorage creates the configured table storage backend.
func ProvideTableStorage(cfg *config.Config) (repository.TableStorage, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return internalrepo.NewMemoryTableStorage(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return internalrepo.NewRedisTableStorage(client,
			internalrepo.WithRedisKeyPrefix(cfg.Storage.Redis.KeyPrefix)), nil

	case "clickhouse":
		ch := cfg.Storage.ClickHouse
		client, err := pkgch.NewClient(
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
			pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		table, err := internalrepo.NewClickHouseTableStorage(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return table, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// ProvideHistoryStore creates the durable candle store.
func ProvideHistoryStore(table repository.TableStorage, codec *internalrepo.RowCodec, l *applogger.Logger) repository.CandleHistoryStore {
	return internalrepo.NewCandleHistoryStore(table, codec, l)
}

// ProvideCandlesCache creates the in-memory candle cache.
func ProvideCandlesCache(cfg *config.Config) *candlecache.Cache {
	var opts []candlecache.Option
	if cfg.Cache.HistoryTicksSize > 0 {
		opts = append(opts, candlecache.WithSeriesLimit(cfg.Cache.HistoryTicksSize))
	}
	return candlecache.New(opts...)
}

// ProvideDestinations creates the destination config from the configured
// asset pairs.
func ProvideDestinations(cfg *config.Config) repository.DestinationConfig {
	return internalrepo.NewStaticDestinations(cfg.Storage.AssetPairs)
}

// ProvidePersistenceQueue creates the write-behind persistence queue.
func ProvidePersistenceQueue(store repository.CandleHistoryStore, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.PersistenceQueue {
	return usecase.NewPersistenceQueue(store, m, l,
		usecase.WithFlushInterval(cfg.Persistence.FlushInterval),
		usecase.WithRetryBackoff(cfg.Persistence.RetryInitial, cfg.Persistence.RetryMax),
		usecase.WithBatchQueueDepth(cfg.Persistence.BatchQueueDepth),
	)
}

// ProvideQueueMonitor creates the queue depth monitor.
func ProvideQueueMonitor(queue *usecase.PersistenceQueue, l *applogger.Logger, cfg *config.Config) *usecase.QueueMonitor {
	return usecase.NewQueueMonitor(queue, l,
		usecase.WithCheckInterval(cfg.QueueMonitor.CheckInterval),
		usecase.WithQueueThresholds(cfg.QueueMonitor.DispatchThreshold, cfg.QueueMonitor.BatchThreshold),
	)
}

// ProvideCandleManager creates the candle manager use case.
func ProvideCandleManager(
	cache *candlecache.Cache,
	store repository.CandleHistoryStore,
	dest repository.DestinationConfig,
	queue *usecase.PersistenceQueue,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.CandleManager {
	return usecase.NewCandleManager(cache, store, dest, queue, m, l,
		usecase.WithVolumeAggregation(cfg.Candles.AggregateVolume))
}

// ProvideSnapshotSerializer creates the snapshot serializer, or nil when
// snapshots are disabled.
func ProvideSnapshotSerializer(table repository.TableStorage, l *applogger.Logger, cfg *config.Config) *usecase.SnapshotSerializer {
	if !cfg.Snapshots.Enabled {
		return nil
	}
	return usecase.NewSnapshotSerializer(internalrepo.NewSnapshotRepository(table), l)
}

// ProvideAssetPairDirectory creates the HTTP asset pair directory client, or
// nil when no directory service is configured.
func ProvideAssetPairDirectory(cfg *config.Config, l *applogger.Logger) repository.AssetPairDirectory {
	if cfg.AssetPairsService.BaseURL == "" {
		return nil
	}
	timeout := cfg.AssetPairsService.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return assetpairs.New(
		cfg.AssetPairsService.BaseURL,
		xhttp.NewClient(xhttp.WithTimeout(timeout)),
		l,
		assetpairs.WithCacheTTL(cfg.AssetPairsService.CacheTTL),
		assetpairs.WithRetries(cfg.AssetPairsService.Retries, cfg.AssetPairsService.RetryGap),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer when the feed source is
// kafka, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Source != "kafka" {
		return nil, nil
	}
	kc := cfg.Feed.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Feed.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBufferSize(kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(&pkgkafka.ObservabilityHook{
		ReportError: func(topic, traceID string, err error) {
			l.Warn("candle feed message failed",
				applogger.String("topic", topic),
				applogger.String("traceId", traceID),
				applogger.Error(err))
		},
	}))
	return consumer, nil
}

// ProvideCandleFeedHandler creates the Kafka candle handler when the feed
// source is kafka, nil otherwise.
func ProvideCandleFeedHandler(manager *usecase.CandleManager, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if cfg.Feed.Source != "kafka" {
		return nil
	}
	return usecase.NewCandleFeedHandler(cfg.Feed.Kafka.Topic, manager, m)
}

// ProvideFeedCollector creates the WebSocket feed collector when the feed
// source is websocket, nil otherwise.
func ProvideFeedCollector(manager *usecase.CandleManager, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.FeedCollector {
	if cfg.Feed.Source != "websocket" {
		return nil
	}
	ws := cfg.Feed.WebSocket
	reconnectDelay := ws.ReconnectDelay
	if reconnectDelay == 0 {
		reconnectDelay = 5 * time.Second
	}
	pingInterval := ws.PingInterval
	if pingInterval == 0 {
		pingInterval = 30 * time.Second
	}
	stream := feed.New(ws.URL, ws.APIKey, cfg.Storage.AssetPairs, reconnectDelay, pingInterval, l)
	return usecase.NewFeedCollector(stream, manager, m)
}

// ProvideHTTPHandler creates the candle history API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	manager *usecase.CandleManager,
	queue *usecase.PersistenceQueue,
	pairs repository.AssetPairDirectory,
	cfg *config.Config,
) xhttp.Handler {
	opts := []api.HandlerOption{
		api.WithRateLimiter(ratelimit.New()),
	}
	if pairs != nil {
		opts = append(opts, api.WithAssetPairDirectory(pairs))
	}
	return api.NewCandlesHandler(l, manager, queue,
		cfg.Service.Name, cfg.Service.Version, cfg.Environment, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	queue *usecase.PersistenceQueue,
	monitor *usecase.QueueMonitor,
	cache *candlecache.Cache,
	snapshots *usecase.SnapshotSerializer,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	feedHandler pkgkafka.MessageHandler,
	table repository.TableStorage,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, l, queue, monitor, cache, snapshots, collector, consumer, feedHandler, table, httpHandler)
}
