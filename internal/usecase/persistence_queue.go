package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
	"CandleHist/pkg/logger"
)

const persistSampleWindow = 32

type persistSample struct {
	duration time.Duration
	candles  int
}

// PersistenceQueue is the write-behind half of the pipeline. Enqueued
// candles accumulate in an unbounded dispatch buffer; a dispatcher cuts the
// buffer into batches on a fixed cadence and a persister writes each batch
// to the durable store, one partition group at a time. Store outages are
// retried with exponential backoff; any other write error drops the group.
type PersistenceQueue struct {
	store   drepo.CandleHistoryStore
	metrics drepo.Metrics
	l       *logger.Logger

	flushInterval   time.Duration
	retryInitial    time.Duration
	retryMax        time.Duration
	batchQueueDepth int

	mu      sync.Mutex
	pending []models.Candle

	batches chan []models.Candle

	inflightMu sync.Mutex
	inflight   []models.Candle

	totalCandles atomic.Int64
	totalRows    atomic.Int64

	statsMu sync.Mutex
	samples []persistSample

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// QueueOption configures PersistenceQueue.
type QueueOption func(*PersistenceQueue)

// WithFlushInterval sets the dispatch cadence.
func WithFlushInterval(d time.Duration) QueueOption {
	return func(q *PersistenceQueue) {
		if d > 0 {
			q.flushInterval = d
		}
	}
}

// WithRetryBackoff sets the initial and maximum backoff between retries of
// an unavailable store.
func WithRetryBackoff(initial, max time.Duration) QueueOption {
	return func(q *PersistenceQueue) {
		if initial > 0 {
			q.retryInitial = initial
		}
		if max > 0 {
			q.retryMax = max
		}
	}
}

// WithBatchQueueDepth sets the capacity of the cut-batch channel.
func WithBatchQueueDepth(n int) QueueOption {
	return func(q *PersistenceQueue) {
		if n > 0 {
			q.batchQueueDepth = n
		}
	}
}

func NewPersistenceQueue(store drepo.CandleHistoryStore, metrics drepo.Metrics, l *logger.Logger, opts ...QueueOption) *PersistenceQueue {
	q := &PersistenceQueue{
		store:           store,
		metrics:         metrics,
		l:               l,
		flushInterval:   5 * time.Second,
		retryInitial:    time.Second,
		retryMax:        time.Minute,
		batchQueueDepth: 16,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.batches = make(chan []models.Candle, q.batchQueueDepth)
	return q
}

// EnqueueCandle buffers a candle for persistence. Never blocks.
func (q *PersistenceQueue) EnqueueCandle(candle models.Candle) {
	q.mu.Lock()
	q.pending = append(q.pending, candle)
	n := len(q.pending)
	q.mu.Unlock()

	q.metrics.SetDispatchQueueLength(n)
}

// Start launches the dispatcher and persister loops.
func (q *PersistenceQueue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	q.wg.Add(2)
	go q.dispatchLoop(ctx)
	go q.persistLoop(ctx)

	q.l.Info("persistence queue started",
		logger.Duration("flushInterval", q.flushInterval))
}

// Stop halts dispatch, drains queued batches, and flushes the remaining
// buffer. Respects ctx for the final writes. Candles that could not be
// written stay in the buffer so a snapshot can still capture them.
func (q *PersistenceQueue) Stop(ctx context.Context) {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()

	var unflushed []models.Candle
	for {
		select {
		case batch := <-q.batches:
			aborted, dropped := q.persistBatch(ctx, batch)
			unflushed = append(unflushed, aborted...)
			unflushed = append(unflushed, dropped...)
		default:
			if rest := q.takePending(); len(rest) > 0 {
				aborted, dropped := q.persistBatch(ctx, rest)
				unflushed = append(unflushed, aborted...)
				unflushed = append(unflushed, dropped...)
			}
			if len(unflushed) > 0 {
				q.SetState(unflushed)
				q.l.Warn("persistence queue stopped with unflushed candles",
					logger.Int("candles", len(unflushed)))
				return
			}
			q.l.Info("persistence queue stopped")
			return
		}
	}
}

// Health reports queue depths, totals, and persist-rate averages.
func (q *PersistenceQueue) Health() models.PersistenceInfo {
	q.mu.Lock()
	dispatchLen := len(q.pending)
	q.mu.Unlock()

	info := models.PersistenceInfo{
		TotalCandlesPersistedCount:    q.totalCandles.Load(),
		TotalCandleRowsPersistedCount: q.totalRows.Load(),
		BatchesToPersistQueueLength:   len(q.batches),
		CandlesToDispatchQueueLength:  dispatchLen,
	}

	q.statsMu.Lock()
	var total time.Duration
	var candles int
	for _, s := range q.samples {
		total += s.duration
		candles += s.candles
	}
	n := len(q.samples)
	q.statsMu.Unlock()

	if n > 0 {
		info.AveragePersistTimeMs = float64(total.Milliseconds()) / float64(n)
	}
	if total > 0 {
		info.AverageCandlesPersistedPerSec = float64(candles) / total.Seconds()
	}
	return info
}

// GetState captures every candle not yet confirmed persisted.
func (q *PersistenceQueue) GetState() []models.Candle {
	var out []models.Candle

	q.inflightMu.Lock()
	out = append(out, q.inflight...)
	q.inflightMu.Unlock()

	for {
		select {
		case batch := <-q.batches:
			out = append(out, batch...)
		default:
			q.mu.Lock()
			out = append(out, q.pending...)
			q.mu.Unlock()
			return out
		}
	}
}

// SetState reloads candles into the dispatch buffer.
func (q *PersistenceQueue) SetState(state []models.Candle) {
	q.mu.Lock()
	q.pending = append(state[:len(state):len(state)], q.pending...)
	n := len(q.pending)
	q.mu.Unlock()

	q.metrics.SetDispatchQueueLength(n)
}

// DescribeState summarizes a state slice for logging.
func (q *PersistenceQueue) DescribeState(state []models.Candle) string {
	keys := make(map[string]struct{})
	for _, c := range state {
		keys[c.CacheKey()] = struct{}{}
	}
	return fmt.Sprintf("%d candles pending for %d series", len(state), len(keys))
}

func (q *PersistenceQueue) dispatchLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := q.takePending()
			if len(batch) == 0 {
				continue
			}
			select {
			case q.batches <- batch:
				q.metrics.SetBatchQueueLength(len(q.batches))
			case <-ctx.Done():
				q.SetState(batch)
				return
			}
		}
	}
}

func (q *PersistenceQueue) persistLoop(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-q.batches:
			q.metrics.SetBatchQueueLength(len(q.batches))
			if aborted, _ := q.persistBatch(ctx, batch); len(aborted) > 0 {
				// cancellation cut the retry short; the group goes back to
				// the buffer so Stop or a snapshot still sees it
				q.SetState(aborted)
			}
		}
	}
}

// persistBatch writes a dispatched batch, one partition group per store
// call. Groups preserve enqueue order within a series. aborted holds the
// candles of groups whose unavailable-store retry was interrupted by ctx,
// dropped the candles of groups the store rejected with a permanent error.
func (q *PersistenceQueue) persistBatch(ctx context.Context, batch []models.Candle) (aborted, dropped []models.Candle) {
	q.setInflight(batch)
	defer q.setInflight(nil)

	groups := make(map[string][]models.Candle)
	order := make([]string, 0, 4)
	for _, c := range batch {
		key := c.CacheKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	start := time.Now()
	persisted := 0
	for _, key := range order {
		n, err := q.writeGroup(ctx, groups[key])
		if err != nil {
			if errors.Is(err, models.ErrStoreUnavailable) {
				q.l.Warn("candle group not persisted", logger.Error(err),
					logger.String("series", key),
					logger.Int("candles", len(groups[key])))
				aborted = append(aborted, groups[key]...)
			} else {
				q.l.Error("candle group dropped", logger.Error(err),
					logger.String("series", key),
					logger.Int("candles", len(groups[key])))
				q.metrics.RecordError("persist")
				dropped = append(dropped, groups[key]...)
			}
			continue
		}
		persisted += len(groups[key])
		q.totalRows.Add(int64(n))
		q.metrics.RecordRowsPersisted(n)
	}

	if persisted > 0 {
		elapsed := time.Since(start)
		q.totalCandles.Add(int64(persisted))
		q.metrics.RecordCandlesPersisted(persisted)
		q.metrics.RecordPersistDuration(elapsed.Seconds())
		q.recordSample(persistSample{duration: elapsed, candles: persisted})
	}
	return aborted, dropped
}

// writeGroup retries for as long as the store reports itself unavailable.
// Any other error is final.
func (q *PersistenceQueue) writeGroup(ctx context.Context, group []models.Candle) (int, error) {
	backoff := q.retryInitial
	for {
		n, err := q.store.Write(ctx, group)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, models.ErrStoreUnavailable) {
			return 0, err
		}

		q.l.Warn("store unavailable, retrying candle group",
			logger.Error(err),
			logger.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("retry aborted: %w", err)
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > q.retryMax {
			backoff = q.retryMax
		}
	}
}

func (q *PersistenceQueue) takePending() []models.Candle {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	q.metrics.SetDispatchQueueLength(0)
	return batch
}

func (q *PersistenceQueue) setInflight(batch []models.Candle) {
	q.inflightMu.Lock()
	q.inflight = batch
	q.inflightMu.Unlock()
}

func (q *PersistenceQueue) recordSample(s persistSample) {
	q.statsMu.Lock()
	q.samples = append(q.samples, s)
	if len(q.samples) > persistSampleWindow {
		q.samples = q.samples[1:]
	}
	q.statsMu.Unlock()
}

var _ drepo.StateHolder = (*PersistenceQueue)(nil)
