package usecase

import (
	"context"
	"sync"
	"time"

	"CandleHist/internal/domain/models"
	"CandleHist/pkg/logger"
)

// HealthSource reports the persistence pipeline's current state.
type HealthSource interface {
	Health() models.PersistenceInfo
}

// QueueMonitor periodically inspects queue depths and warns when they stay
// above the configured thresholds, which usually means the store cannot keep
// up with the feed.
type QueueMonitor struct {
	source HealthSource
	l      *logger.Logger

	checkInterval     time.Duration
	dispatchThreshold int
	batchThreshold    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// MonitorOption configures QueueMonitor.
type MonitorOption func(*QueueMonitor)

// WithCheckInterval sets the inspection cadence.
func WithCheckInterval(d time.Duration) MonitorOption {
	return func(m *QueueMonitor) {
		if d > 0 {
			m.checkInterval = d
		}
	}
}

// WithQueueThresholds sets the warning thresholds for the dispatch buffer
// and the batch queue.
func WithQueueThresholds(dispatch, batch int) MonitorOption {
	return func(m *QueueMonitor) {
		if dispatch > 0 {
			m.dispatchThreshold = dispatch
		}
		if batch > 0 {
			m.batchThreshold = batch
		}
	}
}

func NewQueueMonitor(source HealthSource, l *logger.Logger, opts ...MonitorOption) *QueueMonitor {
	m := &QueueMonitor{
		source:            source,
		l:                 l,
		checkInterval:     time.Minute,
		dispatchThreshold: 10000,
		batchThreshold:    8,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *QueueMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check()
			}
		}
	}()
}

func (m *QueueMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *QueueMonitor) check() {
	info := m.source.Health()

	if info.CandlesToDispatchQueueLength > m.dispatchThreshold {
		m.l.Warn("candle dispatch buffer is backing up",
			logger.Int("length", info.CandlesToDispatchQueueLength),
			logger.Int("threshold", m.dispatchThreshold))
	}
	if info.BatchesToPersistQueueLength > m.batchThreshold {
		m.l.Warn("batch queue is backing up",
			logger.Int("length", info.BatchesToPersistQueueLength),
			logger.Int("threshold", m.batchThreshold))
	}
}
