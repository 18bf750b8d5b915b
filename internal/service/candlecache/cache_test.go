package candlecache

import (
	"testing"
	"time"

	"CandleHist/internal/domain/models"
)

func minuteCandle(pair string, minute int, price float64) models.Candle {
	ts := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
	return models.Candle{
		AssetPairID:   pair,
		PriceType:     models.PriceTypeBid,
		TimeInterval:  models.IntervalMinute,
		Timestamp:     ts,
		Open:          price,
		Close:         price,
		High:          price,
		Low:           price,
		TradingVolume: 1,
	}
}

func TestCacheInsertAndRange(t *testing.T) {
	c := New()
	for _, m := range []int{5, 1, 3, 2, 4} {
		c.Cache(minuteCandle("BTCUSD", m, float64(m)))
	}

	from := time.Date(2024, 3, 15, 17, 2, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 17, 5, 0, 0, time.UTC)
	got := c.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute, from, to)
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
	for i, candle := range got {
		want := from.Add(time.Duration(i) * time.Minute)
		if !candle.Timestamp.Equal(want) {
			t.Fatalf("candle %d at %v, want %v", i, candle.Timestamp, want)
		}
	}
}

func TestCacheUpsertReplaces(t *testing.T) {
	c := New()
	c.Cache(minuteCandle("BTCUSD", 1, 100))
	c.Cache(minuteCandle("BTCUSD", 1, 200))

	got := c.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute,
		time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	if len(got) != 1 {
		t.Fatalf("got %d candles, want 1", len(got))
	}
	if got[0].Open != 200 {
		t.Fatalf("open = %v, want 200 after replacement", got[0].Open)
	}
}

func TestCacheRangeUpperBoundExclusive(t *testing.T) {
	c := New()
	c.Cache(minuteCandle("BTCUSD", 0, 1))
	c.Cache(minuteCandle("BTCUSD", 1, 2))

	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 17, 1, 0, 0, time.UTC)
	got := c.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute, from, to)
	if len(got) != 1 {
		t.Fatalf("got %d candles, want 1", len(got))
	}
	if !got[0].Timestamp.Equal(from) {
		t.Fatalf("got timestamp %v, want %v", got[0].Timestamp, from)
	}
}

func TestCacheKeyCaseInsensitivePair(t *testing.T) {
	c := New()
	c.Cache(minuteCandle("btcusd", 1, 100))

	got := c.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute,
		time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	if len(got) != 1 {
		t.Fatalf("got %d candles, want 1", len(got))
	}
}

func TestCacheEvictionMovesHorizon(t *testing.T) {
	c := New(WithSeriesLimit(3))
	for m := 0; m < 5; m++ {
		c.Cache(minuteCandle("BTCUSD", m, float64(m)))
	}

	horizon, ok := c.GetCoverageHorizon("BTCUSD", models.PriceTypeBid, models.IntervalMinute)
	if !ok {
		t.Fatalf("expected coverage horizon")
	}
	want := time.Date(2024, 3, 15, 17, 2, 0, 0, time.UTC)
	if !horizon.Equal(want) {
		t.Fatalf("horizon = %v, want %v", horizon, want)
	}

	got := c.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute,
		time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	if len(got) != 3 {
		t.Fatalf("got %d candles after eviction, want 3", len(got))
	}
}

func TestCacheHorizonEmptySeries(t *testing.T) {
	c := New()
	if _, ok := c.GetCoverageHorizon("BTCUSD", models.PriceTypeBid, models.IntervalMinute); ok {
		t.Fatalf("expected no horizon for missing series")
	}
}

func TestCacheStateRoundTrip(t *testing.T) {
	c := New()
	c.Cache(minuteCandle("BTCUSD", 1, 100))
	c.Cache(minuteCandle("ETHUSD", 2, 200))

	state := c.GetState()
	if len(state) != 2 {
		t.Fatalf("state has %d candles, want 2", len(state))
	}
	if desc := c.DescribeState(state); desc != "2 candles in 2 series" {
		t.Fatalf("unexpected description %q", desc)
	}

	restored := New()
	restored.SetState(state)
	got := restored.GetCandles("ETHUSD", models.PriceTypeBid, models.IntervalMinute,
		time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	if len(got) != 1 || got[0].Open != 200 {
		t.Fatalf("restored cache returned %v", got)
	}
}

func TestCacheSynthesizedIntervalSharesSeries(t *testing.T) {
	c := New()
	candle := minuteCandle("BTCUSD", 0, 100)
	candle.TimeInterval = models.IntervalMin5
	c.Cache(candle)

	got := c.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute,
		time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	if len(got) != 1 {
		t.Fatalf("Min5 candle must land in the Minute series, got %d", len(got))
	}
}
