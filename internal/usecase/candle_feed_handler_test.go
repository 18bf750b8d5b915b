package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"CandleHist/internal/domain/models"
)

func TestFeedHandlerRoutesCandle(t *testing.T) {
	f := newManagerFixture(t)
	h := NewCandleFeedHandler("candles", f.manager, nopMetrics{})

	if h.Topic() != "candles" {
		t.Fatalf("topic = %q", h.Topic())
	}

	msg := []byte(`{
		"assetPairId": "BTCUSD",
		"priceType": "Bid",
		"timeInterval": "Minute",
		"timestamp": 1710522000,
		"open": 100, "close": 101, "high": 102, "low": 99,
		"tradingVolume": 5
	}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.queue.candles) != 1 {
		t.Fatalf("enqueued %d candles, want 1", len(f.queue.candles))
	}
	c := f.queue.candles[0]
	want := time.Unix(1710522000, 0).UTC()
	if !c.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", c.Timestamp, want)
	}
	if c.PriceType != models.PriceTypeBid || c.TimeInterval != models.IntervalMinute {
		t.Fatalf("coordinates %s/%s", c.PriceType, c.TimeInterval)
	}
	if c.Open != 100 || c.TradingVolume != 5 {
		t.Fatalf("values %+v", c)
	}
}

func TestFeedHandlerMillisecondTimestamp(t *testing.T) {
	f := newManagerFixture(t)
	h := NewCandleFeedHandler("candles", f.manager, nopMetrics{})

	msg := []byte(`{
		"assetPairId": "BTCUSD",
		"priceType": "Bid",
		"timeInterval": "Minute",
		"timestamp": 1710522000000,
		"open": 1, "close": 1, "high": 1, "low": 1
	}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.queue.candles) != 1 {
		t.Fatalf("enqueued %d candles, want 1", len(f.queue.candles))
	}
	want := time.Unix(1710522000, 0).UTC()
	if got := f.queue.candles[0].Timestamp; !got.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", got, want)
	}
}

func TestFeedHandlerRejectsBadMessage(t *testing.T) {
	f := newManagerFixture(t)
	h := NewCandleFeedHandler("candles", f.manager, nopMetrics{})

	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed json")
	}

	badPrice := []byte(`{"assetPairId":"BTCUSD","priceType":"Exotic","timeInterval":"Minute","timestamp":1710522000}`)
	if err := h.Handle(context.Background(), badPrice); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("bad price type err = %v", err)
	}

	badInterval := []byte(`{"assetPairId":"BTCUSD","priceType":"Bid","timeInterval":"Fortnight","timestamp":1710522000}`)
	if err := h.Handle(context.Background(), badInterval); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("bad interval err = %v", err)
	}

	if len(f.queue.candles) != 0 {
		t.Fatalf("bad messages must not enqueue candles")
	}
}
