package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
	pkgkafka "CandleHist/pkg/kafka"
)

// CandleFeedHandler consumes candle update messages and routes them through
// the manager.
type CandleFeedHandler struct {
	topic   string
	manager *CandleManager
	metrics drepo.Metrics
}

func NewCandleFeedHandler(topic string, manager *CandleManager, metrics drepo.Metrics) *CandleFeedHandler {
	return &CandleFeedHandler{topic: topic, manager: manager, metrics: metrics}
}

func (h *CandleFeedHandler) Topic() string { return h.topic }

// incoming message schema:
// {assetPairId, priceType, timeInterval, timestamp, open, close, high, low, tradingVolume}
func (h *CandleFeedHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		AssetPairID   string  `json:"assetPairId"`
		PriceType     string  `json:"priceType"`
		TimeInterval  string  `json:"timeInterval"`
		Timestamp     int64   `json:"timestamp"`
		Open          float64 `json:"open"`
		Close         float64 `json:"close"`
		High          float64 `json:"high"`
		Low           float64 `json:"low"`
		TradingVolume float64 `json:"tradingVolume"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("feed_unmarshal")
		return err
	}

	priceType := models.ParsePriceType(m.PriceType)
	if priceType == models.PriceTypeUnspecified {
		h.metrics.RecordError("feed_price_type")
		return fmt.Errorf("feed message: unknown price type %q: %w", m.PriceType, models.ErrInvalidArgument)
	}
	interval := models.ParseTimeInterval(m.TimeInterval)
	if interval == models.IntervalUnspecified {
		h.metrics.RecordError("feed_interval")
		return fmt.Errorf("feed message: unknown time interval %q: %w", m.TimeInterval, models.ErrInvalidArgument)
	}
	if m.Timestamp > 1e11 { // ms
		m.Timestamp = m.Timestamp / 1000
	}

	h.manager.ProcessCandle(models.Candle{
		AssetPairID:   m.AssetPairID,
		PriceType:     priceType,
		TimeInterval:  interval,
		Timestamp:     time.Unix(m.Timestamp, 0).UTC(),
		Open:          m.Open,
		Close:         m.Close,
		High:          m.High,
		Low:           m.Low,
		TradingVolume: m.TradingVolume,
	})
	return nil
}

var _ pkgkafka.MessageHandler = (*CandleFeedHandler)(nil)
