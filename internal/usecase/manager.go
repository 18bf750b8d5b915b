package usecase

import (
	"context"
	"fmt"
	"time"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
	"CandleHist/pkg/logger"
)

// CandleEnqueuer accepts candles for asynchronous persistence.
type CandleEnqueuer interface {
	EnqueueCandle(candle models.Candle)
}

// CandleManager is the ingestion and read front of the candle pipeline.
// Incoming candles fan out to the in-memory cache and the persistence queue;
// reads merge the cache window with the durable store and aggregate stored
// candles up to the requested interval.
type CandleManager struct {
	cache   drepo.CandlesCache
	store   drepo.CandleHistoryStore
	dest    drepo.DestinationConfig
	queue   CandleEnqueuer
	metrics drepo.Metrics
	l       *logger.Logger

	aggregateVolume bool
}

// ManagerOption configures CandleManager.
type ManagerOption func(*CandleManager)

// WithVolumeAggregation controls whether trading volume is summed when
// candles are merged into a coarser interval. When disabled the merged
// candle carries the volume of its last source candle.
func WithVolumeAggregation(enabled bool) ManagerOption {
	return func(m *CandleManager) {
		m.aggregateVolume = enabled
	}
}

func NewCandleManager(
	cache drepo.CandlesCache,
	store drepo.CandleHistoryStore,
	dest drepo.DestinationConfig,
	queue CandleEnqueuer,
	metrics drepo.Metrics,
	l *logger.Logger,
	opts ...ManagerOption,
) *CandleManager {
	m := &CandleManager{
		cache:           cache,
		store:           store,
		dest:            dest,
		queue:           queue,
		metrics:         metrics,
		l:               l,
		aggregateVolume: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProcessCandle routes one feed candle. Candles of asset pairs without a
// configured destination are dropped. Candles at non-stored intervals are
// dropped as misrouted.
func (m *CandleManager) ProcessCandle(candle models.Candle) {
	if !m.dest.CanStore(candle.AssetPairID) {
		m.l.Debug("candle dropped, no destination",
			logger.String("assetPair", candle.AssetPairID))
		m.metrics.RecordError("no_destination")
		return
	}
	if !candle.TimeInterval.IsStored() {
		m.l.Warn("candle dropped, interval is not stored",
			logger.String("assetPair", candle.AssetPairID),
			logger.String("interval", candle.TimeInterval.String()))
		m.metrics.RecordError("misrouted")
		return
	}

	m.cache.Cache(candle)
	m.queue.EnqueueCandle(candle)
	m.metrics.RecordCandleProcessed(candle.AssetPairID)
}

// GetCandles returns candles of the requested interval with timestamps in
// [from, to), both bounds aligned down to the interval grid. Candles come
// from the cache window first; history older than the cache coverage horizon
// is read from the durable store and, when the requested interval is not a
// stored one, aggregated from the nearest stored interval.
func (m *CandleManager) GetCandles(ctx context.Context, assetPairID string, priceType models.PriceType, interval models.TimeInterval, from, to time.Time) ([]models.Candle, error) {
	if priceType == models.PriceTypeUnspecified {
		return nil, fmt.Errorf("price type is not specified: %w", models.ErrInvalidArgument)
	}
	if interval == models.IntervalUnspecified {
		return nil, fmt.Errorf("time interval is not specified: %w", models.ErrInvalidArgument)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("from %s is not before to %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), models.ErrInvalidArgument)
	}
	if !m.dest.CanStore(assetPairID) {
		return nil, fmt.Errorf("asset pair %s: %w", assetPairID, models.ErrUnsupportedAssetPair)
	}

	start := time.Now()
	from = models.AlignDown(from, interval)
	to = models.AlignDown(to, interval)
	if !from.Before(to) {
		return nil, nil
	}

	storedInterval := models.NearestStoredInterval(interval)
	cached := m.cache.GetCandles(assetPairID, priceType, storedInterval, from, to)

	stored, err := m.readStored(ctx, assetPairID, priceType, storedInterval, from, to)
	if err != nil {
		m.metrics.RecordError("read_history")
		return nil, err
	}

	merged := mergeStoredWithCached(stored, cached)
	if interval != storedInterval {
		merged = aggregateToInterval(merged, interval, m.aggregateVolume)
	}

	out := merged[:0:0]
	for _, c := range merged {
		if !c.Timestamp.Before(from) && c.Timestamp.Before(to) {
			out = append(out, c)
		}
	}
	m.metrics.RecordReadDuration("get_candles", time.Since(start).Seconds())
	return out, nil
}

// readStored queries the durable store for the part of [from, to) that the
// cache window does not cover.
func (m *CandleManager) readStored(ctx context.Context, assetPairID string, priceType models.PriceType, storedInterval models.TimeInterval, from, to time.Time) ([]models.Candle, error) {
	horizon, ok := m.cache.GetCoverageHorizon(assetPairID, priceType, storedInterval)
	if ok {
		if !horizon.After(from) {
			return nil, nil
		}
		if horizon.Before(to) {
			to = horizon
		}
	}
	stored, err := m.store.Query(ctx, assetPairID, priceType, storedInterval, from, to)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", assetPairID, err)
	}
	return stored, nil
}

// mergeStoredWithCached concatenates stored and cached candles. On overlap
// the cache wins: stored candles are taken only while they precede the first
// cached timestamp.
func mergeStoredWithCached(stored, cached []models.Candle) []models.Candle {
	if len(cached) == 0 {
		return stored
	}
	firstCached := cached[0].Timestamp
	cut := len(stored)
	for i, c := range stored {
		if !c.Timestamp.Before(firstCached) {
			cut = i
			break
		}
	}
	out := make([]models.Candle, 0, cut+len(cached))
	out = append(out, stored[:cut]...)
	out = append(out, cached...)
	return out
}

// aggregateToInterval merges candles of a finer interval into candles on the
// target interval grid. Input must be ascending by timestamp.
func aggregateToInterval(candles []models.Candle, interval models.TimeInterval, aggregateVolume bool) []models.Candle {
	if len(candles) == 0 {
		return nil
	}
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		bucket := models.AlignDown(c.Timestamp, interval)
		if len(out) == 0 || !out[len(out)-1].Timestamp.Equal(bucket) {
			merged := c
			merged.Timestamp = bucket
			merged.TimeInterval = interval
			out = append(out, merged)
			continue
		}
		last := &out[len(out)-1]
		last.Close = c.Close
		if c.High > last.High {
			last.High = c.High
		}
		if c.Low < last.Low {
			last.Low = c.Low
		}
		if aggregateVolume {
			last.TradingVolume += c.TradingVolume
		} else {
			last.TradingVolume = c.TradingVolume
		}
	}
	return out
}
