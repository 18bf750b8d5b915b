package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesProcessed *prometheus.CounterVec
	candlesPersisted prometheus.Counter
	rowsPersisted    prometheus.Counter
	errorsTotal      *prometheus.CounterVec
	dispatchQueueLen prometheus.Gauge
	batchQueueLen    prometheus.Gauge
	persistDuration  prometheus.Histogram
	readDuration     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlehist_candles_processed_total",
				Help: "Total number of feed candles routed into the pipeline",
			},
			[]string{"asset_pair"},
		),
		candlesPersisted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "candlehist_candles_persisted_total",
				Help: "Total number of candles written to the durable store",
			},
		),
		rowsPersisted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "candlehist_candle_rows_persisted_total",
				Help: "Total number of storage rows written",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlehist_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		dispatchQueueLen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "candlehist_dispatch_queue_length",
				Help: "Candles buffered for dispatch",
			},
		),
		batchQueueLen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "candlehist_batch_queue_length",
				Help: "Cut batches waiting for the persister",
			},
		),
		persistDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "candlehist_persist_duration_seconds",
				Help:    "Duration of batch persist operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		readDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candlehist_read_duration_seconds",
				Help:    "Duration of read operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandleProcessed records one candle routed into the pipeline.
func (r *Recorder) RecordCandleProcessed(assetPairID string) {
	r.candlesProcessed.WithLabelValues(assetPairID).Inc()
}

// RecordCandlesPersisted records candles confirmed written.
func (r *Recorder) RecordCandlesPersisted(n int) {
	r.candlesPersisted.Add(float64(n))
}

// RecordRowsPersisted records storage rows written.
func (r *Recorder) RecordRowsPersisted(n int) {
	r.rowsPersisted.Add(float64(n))
}

// SetDispatchQueueLength updates the dispatch buffer gauge.
func (r *Recorder) SetDispatchQueueLength(n int) {
	r.dispatchQueueLen.Set(float64(n))
}

// SetBatchQueueLength updates the batch queue gauge.
func (r *Recorder) SetBatchQueueLength(n int) {
	r.batchQueueLen.Set(float64(n))
}

// RecordPersistDuration records a batch persist duration in seconds.
func (r *Recorder) RecordPersistDuration(seconds float64) {
	r.persistDuration.Observe(seconds)
}

// RecordReadDuration records a read operation duration in seconds.
func (r *Recorder) RecordReadDuration(op string, seconds float64) {
	r.readDuration.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
