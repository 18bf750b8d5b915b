package models

import (
	"fmt"
	"strings"
	"time"
)

// PriceType represents which side of market data a candle carries.
type PriceType int

const (
	PriceTypeUnspecified PriceType = iota
	PriceTypeBid
	PriceTypeAsk
	PriceTypeMid
)

var priceTypeNames = map[PriceType]string{
	PriceTypeUnspecified: "Unspecified",
	PriceTypeBid:         "Bid",
	PriceTypeAsk:         "Ask",
	PriceTypeMid:         "Mid",
}

func (p PriceType) String() string {
	if name, ok := priceTypeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PriceType(%d)", int(p))
}

// ParsePriceType converts a name like "Bid" to its price type. Matching is
// case-insensitive; unknown names map to PriceTypeUnspecified.
func ParsePriceType(s string) PriceType {
	for pt, name := range priceTypeNames {
		if strings.EqualFold(name, s) {
			return pt
		}
	}
	return PriceTypeUnspecified
}

// MarshalText implements encoding.TextMarshaler.
func (p PriceType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PriceType) UnmarshalText(b []byte) error {
	*p = ParsePriceType(string(b))
	return nil
}

// Candle is one OHLC price sample for an asset pair, price type, and time
// interval, timestamped at the start of its bucket. Candles are immutable
// once produced; re-arrival of the same timestamp replaces the entry
// wholesale.
type Candle struct {
	AssetPairID   string       `json:"assetPairId" msgpack:"a"`
	PriceType     PriceType    `json:"priceType" msgpack:"p"`
	TimeInterval  TimeInterval `json:"timeInterval" msgpack:"i"`
	Timestamp     time.Time    `json:"timestamp" msgpack:"t"`
	Open          float64      `json:"open" msgpack:"o"`
	Close         float64      `json:"close" msgpack:"c"`
	High          float64      `json:"high" msgpack:"h"`
	Low           float64      `json:"low" msgpack:"l"`
	TradingVolume float64      `json:"tradingVolume,omitempty" msgpack:"v"`
}

// CacheKey identifies the cache series a candle belongs to. The interval is
// folded to its stored interval so that synthesized granularities share one
// series.
func (c Candle) CacheKey() string {
	return CacheKey(c.AssetPairID, c.PriceType, NearestStoredInterval(c.TimeInterval))
}

// CacheKey builds the series key for an asset pair, price type, and stored
// interval.
func CacheKey(assetPairID string, priceType PriceType, interval TimeInterval) string {
	return strings.ToUpper(assetPairID) + "_" + priceType.String() + "_" + interval.String()
}

// AssetPair describes an entry of the asset-pair directory.
type AssetPair struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	Accuracy         int    `json:"accuracy"`
	InvertedAccuracy int    `json:"invertedAccuracy,omitempty"`
	IsDisabled       bool   `json:"isDisabled"`
}
