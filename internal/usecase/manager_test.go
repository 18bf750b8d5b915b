package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CandleHist/internal/domain/models"
	"CandleHist/internal/repository"
	"CandleHist/internal/service/candlecache"
	"CandleHist/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordCandleProcessed(string)        {}
func (nopMetrics) RecordCandlesPersisted(int)          {}
func (nopMetrics) RecordRowsPersisted(int)             {}
func (nopMetrics) SetDispatchQueueLength(int)          {}
func (nopMetrics) SetBatchQueueLength(int)             {}
func (nopMetrics) RecordPersistDuration(float64)       {}
func (nopMetrics) RecordReadDuration(string, float64)  {}
func (nopMetrics) RecordError(string)                  {}

type fakeEnqueuer struct {
	candles []models.Candle
}

func (f *fakeEnqueuer) EnqueueCandle(c models.Candle) {
	f.candles = append(f.candles, c)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type managerFixture struct {
	manager *CandleManager
	cache   *candlecache.Cache
	store   *repository.CandleHistoryStore
	queue   *fakeEnqueuer
}

func newManagerFixture(t *testing.T, opts ...ManagerOption) *managerFixture {
	t.Helper()
	cache := candlecache.New()
	store := repository.NewCandleHistoryStore(repository.NewMemoryTableStorage(), repository.NewRowCodec(nil), nil)
	queue := &fakeEnqueuer{}
	m := NewCandleManager(cache, store, repository.NewStaticDestinations([]string{"BTCUSD"}), queue, nopMetrics{}, testLogger(t), opts...)
	return &managerFixture{manager: m, cache: cache, store: store, queue: queue}
}

func minuteCandle(minute int, price float64) models.Candle {
	return models.Candle{
		AssetPairID:   "BTCUSD",
		PriceType:     models.PriceTypeBid,
		TimeInterval:  models.IntervalMinute,
		Timestamp:     time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute),
		Open:          price,
		Close:         price + 1,
		High:          price + 2,
		Low:           price - 1,
		TradingVolume: 1,
	}
}

func TestGetCandlesValidation(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	if _, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeUnspecified, models.IntervalMinute, from, to); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("unspecified price type: err = %v", err)
	}
	if _, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalUnspecified, from, to); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("unspecified interval: err = %v", err)
	}
	if _, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalMinute, to, from); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("from after to: err = %v", err)
	}
	if _, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalMinute, from, from); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("from equal to: err = %v", err)
	}
	if _, err := f.manager.GetCandles(ctx, "XRPUSD", models.PriceTypeBid, models.IntervalMinute, from, to); !errors.Is(err, models.ErrUnsupportedAssetPair) {
		t.Fatalf("unknown pair: err = %v", err)
	}
}

func TestGetCandlesEmptyAfterAlignment(t *testing.T) {
	f := newManagerFixture(t)
	// Both bounds collapse onto the same hour bucket.
	from := time.Date(2024, 3, 15, 17, 5, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 17, 25, 0, 0, time.UTC)
	got, err := f.manager.GetCandles(context.Background(), "BTCUSD", models.PriceTypeBid, models.IntervalHour, from, to)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestProcessCandleRouting(t *testing.T) {
	f := newManagerFixture(t)

	// No destination: dropped entirely.
	dropped := minuteCandle(0, 1)
	dropped.AssetPairID = "XRPUSD"
	f.manager.ProcessCandle(dropped)
	if len(f.queue.candles) != 0 {
		t.Fatalf("candle without destination was enqueued")
	}

	// Non-stored interval: dropped as misrouted.
	misrouted := minuteCandle(0, 1)
	misrouted.TimeInterval = models.IntervalMin5
	f.manager.ProcessCandle(misrouted)
	if len(f.queue.candles) != 0 {
		t.Fatalf("misrouted candle was enqueued")
	}

	// Valid: cached and enqueued.
	c := minuteCandle(1, 100)
	f.manager.ProcessCandle(c)
	if len(f.queue.candles) != 1 {
		t.Fatalf("enqueued %d candles, want 1", len(f.queue.candles))
	}
	cached := f.cache.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute, c.Timestamp, c.Timestamp.Add(time.Minute))
	if len(cached) != 1 {
		t.Fatalf("cached %d candles, want 1", len(cached))
	}
}

func TestGetCandlesCacheWinsOverStore(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// Store holds minutes 0..9 with open = 1000+m.
	var stored []models.Candle
	for m := 0; m < 10; m++ {
		c := minuteCandle(m, 1000+float64(m))
		stored = append(stored, c)
	}
	if _, err := f.store.Write(ctx, stored); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Cache covers minutes 5..9 with open = 2000+m, overlapping the store.
	for m := 5; m < 10; m++ {
		f.cache.Cache(minuteCandle(m, 2000+float64(m)))
	}

	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	got, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalMinute, from, from.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d candles, want 10", len(got))
	}
	for i, c := range got {
		want := 1000 + float64(i)
		if i >= 5 {
			want = 2000 + float64(i)
		}
		if c.Open != want {
			t.Fatalf("minute %d open = %v, want %v", i, c.Open, want)
		}
	}
}

func TestGetCandlesStoreOnly(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	var stored []models.Candle
	for m := 0; m < 3; m++ {
		stored = append(stored, minuteCandle(m, float64(m)))
	}
	if _, err := f.store.Write(ctx, stored); err != nil {
		t.Fatalf("Write: %v", err)
	}

	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	got, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalMinute, from, from.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
}

func TestGetCandlesAggregatesToMin15(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// Minutes 17:13 through 17:17 straddle the 17:15 boundary.
	for m := 13; m <= 17; m++ {
		f.cache.Cache(minuteCandle(m, float64(m)))
	}

	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	got, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalMin15, from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2", len(got))
	}

	first := got[0]
	if !first.Timestamp.Equal(from) {
		t.Fatalf("first bucket at %v, want %v", first.Timestamp, from)
	}
	if first.TimeInterval != models.IntervalMin15 {
		t.Fatalf("first bucket interval = %s", first.TimeInterval)
	}
	// Merged from minutes 13 and 14.
	if first.Open != 13 || first.Close != 15 || first.High != 16 || first.Low != 12 {
		t.Fatalf("first bucket OHLC = %v/%v/%v/%v", first.Open, first.High, first.Low, first.Close)
	}
	if first.TradingVolume != 2 {
		t.Fatalf("first bucket volume = %v, want summed 2", first.TradingVolume)
	}

	second := got[1]
	if !second.Timestamp.Equal(from.Add(15 * time.Minute)) {
		t.Fatalf("second bucket at %v", second.Timestamp)
	}
	// Merged from minutes 15, 16, and 17.
	if second.Open != 15 || second.Close != 18 || second.High != 19 || second.Low != 14 {
		t.Fatalf("second bucket OHLC = %v/%v/%v/%v", second.Open, second.High, second.Low, second.Close)
	}
	if second.TradingVolume != 3 {
		t.Fatalf("second bucket volume = %v, want summed 3", second.TradingVolume)
	}
}

func TestGetCandlesVolumeNotAggregated(t *testing.T) {
	f := newManagerFixture(t, WithVolumeAggregation(false))
	ctx := context.Background()

	for m := 0; m < 3; m++ {
		c := minuteCandle(m, float64(m))
		c.TradingVolume = float64(m + 1)
		f.cache.Cache(c)
	}

	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	got, err := f.manager.GetCandles(ctx, "BTCUSD", models.PriceTypeBid, models.IntervalMin5, from, from.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candles, want 1", len(got))
	}
	if got[0].TradingVolume != 3 {
		t.Fatalf("volume = %v, want last source volume 3", got[0].TradingVolume)
	}
}
