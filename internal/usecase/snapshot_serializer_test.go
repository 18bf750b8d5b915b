package usecase

import (
	"context"
	"testing"
	"time"

	"CandleHist/internal/domain/models"
	"CandleHist/internal/repository"
	"CandleHist/internal/service/candlecache"
)

func TestSnapshotSerializerRoundTrip(t *testing.T) {
	repo := repository.NewSnapshotRepository(repository.NewMemoryTableStorage())
	ser := NewSnapshotSerializer(repo, testLogger(t))
	ctx := context.Background()

	cache := candlecache.New()
	cache.Cache(models.Candle{
		AssetPairID:  "BTCUSD",
		PriceType:    models.PriceTypeBid,
		TimeInterval: models.IntervalMinute,
		Timestamp:    time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		Open:         100, Close: 101, High: 102, Low: 99,
	})

	if err := ser.Serialize(ctx, "candlesCache", cache); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored := candlecache.New()
	if err := ser.Deserialize(ctx, "candlesCache", restored); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	got := restored.GetCandles("BTCUSD", models.PriceTypeBid, models.IntervalMinute,
		time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	if len(got) != 1 || got[0].Open != 100 {
		t.Fatalf("restored %v", got)
	}
}

func TestSnapshotSerializerMissingSnapshot(t *testing.T) {
	repo := repository.NewSnapshotRepository(repository.NewMemoryTableStorage())
	ser := NewSnapshotSerializer(repo, testLogger(t))

	cache := candlecache.New()
	if err := ser.Deserialize(context.Background(), "candlesCache", cache); err != nil {
		t.Fatalf("missing snapshot must not error, got %v", err)
	}
}
