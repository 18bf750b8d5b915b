package repository

import (
	"context"
	"time"

	"CandleHist/internal/domain/models"
)

// TableRow is one record of the key-value table backend: an opaque payload
// addressed by partition and row keys. Row keys sort lexicographically in
// scan order.
type TableRow struct {
	Partition string
	Row       string
	Payload   []byte
}

// TableStorage is the key-value table the durable candle store is built on.
// Implementations wrap transport failures in models.ErrStoreUnavailable and
// never retry internally.
type TableStorage interface {
	// Get returns the row or nil when it does not exist.
	Get(ctx context.Context, partition, row string) (*TableRow, error)
	// GetBatch returns the subset of the requested rows that exist.
	GetBatch(ctx context.Context, partition string, rows []string) ([]TableRow, error)
	// UpsertBatch inserts or replaces the given rows.
	UpsertBatch(ctx context.Context, rows []TableRow) error
	// Scan returns rows of the partition with rowFrom <= key <= rowTo,
	// ascending by row key.
	Scan(ctx context.Context, partition, rowFrom, rowTo string) ([]TableRow, error)
	// First returns the row with the smallest key in the partition, or nil
	// when the partition is empty.
	First(ctx context.Context, partition string) (*TableRow, error)
	Close() error
}

// CandleHistoryStore is the durable candle store: multi-sample rows packed
// through the row codec on top of TableStorage.
type CandleHistoryStore interface {
	// Write merges a group of candles of one asset pair, price type, and
	// stored interval into their storage rows. Missing rows are created.
	// Returns the number of rows written.
	Write(ctx context.Context, candles []models.Candle) (int, error)
	// Query returns candles of the stored interval with from <= ts < to,
	// ascending by timestamp.
	Query(ctx context.Context, assetPairID string, priceType models.PriceType, interval models.TimeInterval, from, to time.Time) ([]models.Candle, error)
	// FirstCandle returns the earliest persisted candle of the partition, or
	// nil when nothing has been persisted yet.
	FirstCandle(ctx context.Context, assetPairID string, priceType models.PriceType, interval models.TimeInterval) (*models.Candle, error)
}

// CandlesCache is the bounded in-memory window of recent candles.
type CandlesCache interface {
	Cache(candle models.Candle)
	GetCandles(assetPairID string, priceType models.PriceType, interval models.TimeInterval, from, to time.Time) []models.Candle
	// GetCoverageHorizon returns the oldest retained timestamp of the series,
	// or ok=false when the series holds no candles.
	GetCoverageHorizon(assetPairID string, priceType models.PriceType, interval models.TimeInterval) (time.Time, bool)
}

// AssetPairDirectory looks up asset pairs in the external directory service.
type AssetPairDirectory interface {
	// TryGetEnabledPair returns nil when the pair is unknown or disabled.
	TryGetEnabledPair(ctx context.Context, assetPairID string) (*models.AssetPair, error)
	GetAllEnabled(ctx context.Context) ([]models.AssetPair, error)
}

// DestinationConfig answers whether an asset pair has a configured durable
// destination. Candles of unconfigured pairs are dropped on ingestion and
// rejected on reads.
type DestinationConfig interface {
	CanStore(assetPairID string) bool
}

// CandleStream delivers candle updates from an upstream feed.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// StateHolder is implemented by components whose in-memory state survives
// restarts through snapshots.
type StateHolder interface {
	GetState() []models.Candle
	SetState(state []models.Candle)
	DescribeState(state []models.Candle) string
}

// SnapshotRepository stores component state blobs keyed by component name.
type SnapshotRepository interface {
	Save(ctx context.Context, component string, state []models.Candle) error
	// TryGet returns ok=false when no snapshot exists for the component.
	TryGet(ctx context.Context, component string) ([]models.Candle, bool, error)
}

// Metrics records operational measurements of the candle pipeline.
type Metrics interface {
	RecordCandleProcessed(assetPairID string)
	RecordCandlesPersisted(n int)
	RecordRowsPersisted(n int)
	SetDispatchQueueLength(n int)
	SetBatchQueueLength(n int)
	RecordPersistDuration(seconds float64)
	RecordReadDuration(op string, seconds float64)
	RecordError(kind string)
}
