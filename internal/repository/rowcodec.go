package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"CandleHist/internal/domain/models"

	"github.com/vmihailenco/msgpack/v5"
)

// RowItem is one packed candle sample inside a storage row. Tick is the
// number of stored-interval units between the row's bucket start and the
// sample's timestamp.
type RowItem struct {
	Tick   int     `msgpack:"t"`
	Open   float64 `msgpack:"o"`
	Close  float64 `msgpack:"c"`
	High   float64 `msgpack:"h"`
	Low    float64 `msgpack:"l"`
	Volume float64 `msgpack:"v"`
}

// RowRef addresses one storage row.
type RowRef struct {
	Partition   string
	Row         string
	BucketStart time.Time
}

const rowKeyLayout = "20060102150405"

// Default number of stored-interval ticks packed into one row. Chosen so a
// row covers a calendar-friendly span and holds a bounded number of items.
var defaultTicksPerRow = map[models.TimeInterval]int64{
	models.IntervalSec:    3600, // one hour of seconds
	models.IntervalMinute: 1440, // one day of minutes
	models.IntervalMin30:  336,  // one week of half hours
	models.IntervalHour:   744,  // one month of hours
	models.IntervalDay:    62,   // two months of days
	models.IntervalWeek:   53,   // about a year of weeks
	models.IntervalMonth:  120,  // a decade of months
}

// RowCodec maps candles to storage coordinates and merges candle groups into
// packed row item lists. It performs no I/O.
type RowCodec struct {
	ticksPerRow map[models.TimeInterval]int64
}

// NewRowCodec creates a codec. Entries of ticksPerRow override the defaults
// per stored interval; nil keeps all defaults.
func NewRowCodec(ticksPerRow map[models.TimeInterval]int64) *RowCodec {
	m := make(map[models.TimeInterval]int64, len(defaultTicksPerRow))
	for iv, n := range defaultTicksPerRow {
		m[iv] = n
	}
	for iv, n := range ticksPerRow {
		if n > 0 && iv.IsStored() {
			m[iv] = n
		}
	}
	return &RowCodec{ticksPerRow: m}
}

// PartitionKey builds the storage partition for an asset pair, price type,
// and stored interval.
func (c *RowCodec) PartitionKey(assetPairID string, priceType models.PriceType, interval models.TimeInterval) string {
	return strings.ToUpper(assetPairID) + "_" + priceType.String() + "_" + interval.String()
}

// Route computes the storage coordinates of a candle: its partition, row
// key, and tick offset within the row. The candle's interval must be a
// stored interval and its timestamp must be aligned to it.
func (c *RowCodec) Route(candle models.Candle) (RowRef, int, error) {
	interval := candle.TimeInterval
	if !interval.IsStored() {
		return RowRef{}, 0, fmt.Errorf("route %s candle: interval is not stored: %w", interval, models.ErrMisroutedCandle)
	}
	idx, err := models.IntervalIndex(candle.Timestamp, interval)
	if err != nil {
		return RowRef{}, 0, fmt.Errorf("route %s %s candle: %w", candle.AssetPairID, interval, err)
	}
	per := c.ticksPerRow[interval]
	bucketIdx := floorDiv(idx, per) * per
	bucketStart := models.IndexToTime(bucketIdx, interval)
	ref := RowRef{
		Partition:   c.PartitionKey(candle.AssetPairID, candle.PriceType, interval),
		Row:         bucketStart.UTC().Format(rowKeyLayout),
		BucketStart: bucketStart,
	}
	return ref, int(idx - bucketIdx), nil
}

// RowKeyRange returns the inclusive row-key range covering [from, to) for
// the partition of the given stored interval.
func (c *RowCodec) RowKeyRange(interval models.TimeInterval, from, to time.Time) (string, string) {
	return c.rowKeyFor(interval, from), c.rowKeyFor(interval, to)
}

func (c *RowCodec) rowKeyFor(interval models.TimeInterval, t time.Time) string {
	aligned := models.AlignDown(t, interval)
	idx, err := models.IntervalIndex(aligned, interval)
	if err != nil {
		return aligned.UTC().Format(rowKeyLayout)
	}
	per := c.ticksPerRow[interval]
	bucketIdx := floorDiv(idx, per) * per
	return models.IndexToTime(bucketIdx, interval).UTC().Format(rowKeyLayout)
}

// BucketStart recovers the bucket start encoded in a row key.
func (c *RowCodec) BucketStart(rowKey string) (time.Time, error) {
	t, err := time.ParseInLocation(rowKeyLayout, rowKey, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse row key %q: %w", rowKey, err)
	}
	return t, nil
}

// MergeInto merges a group of candles destined for the row ref into the
// row's existing item list. Incoming items overwrite existing items at the
// same tick; new ticks are inserted in order. The result is sorted and
// unique by tick. Candles that do not route to ref fail the merge with
// ErrMisroutedCandle.
func (c *RowCodec) MergeInto(existing []RowItem, ref RowRef, group []models.Candle) ([]RowItem, error) {
	merged := make([]RowItem, len(existing))
	copy(merged, existing)

	for _, candle := range group {
		got, tick, err := c.Route(candle)
		if err != nil {
			return nil, err
		}
		if got.Partition != ref.Partition || got.Row != ref.Row {
			return nil, fmt.Errorf("candle %s@%s belongs to %s/%s, not %s/%s: %w",
				candle.AssetPairID, candle.Timestamp.UTC().Format(time.RFC3339),
				got.Partition, got.Row, ref.Partition, ref.Row, models.ErrMisroutedCandle)
		}
		item := RowItem{
			Tick:   tick,
			Open:   candle.Open,
			Close:  candle.Close,
			High:   candle.High,
			Low:    candle.Low,
			Volume: candle.TradingVolume,
		}
		pos := sort.Search(len(merged), func(i int) bool { return merged[i].Tick >= tick })
		if pos < len(merged) && merged[pos].Tick == tick {
			merged[pos] = item
			continue
		}
		merged = append(merged, RowItem{})
		copy(merged[pos+1:], merged[pos:])
		merged[pos] = item
	}
	return merged, nil
}

// ToCandle decodes one packed item back into a candle.
func (c *RowCodec) ToCandle(item RowItem, bucketStart time.Time, assetPairID string, priceType models.PriceType, interval models.TimeInterval) (models.Candle, error) {
	ts, err := models.AddTicks(bucketStart, item.Tick, interval)
	if err != nil {
		return models.Candle{}, fmt.Errorf("decode tick %d of %s row: %w", item.Tick, interval, err)
	}
	return models.Candle{
		AssetPairID:   strings.ToUpper(assetPairID),
		PriceType:     priceType,
		TimeInterval:  interval,
		Timestamp:     ts,
		Open:          item.Open,
		Close:         item.Close,
		High:          item.High,
		Low:           item.Low,
		TradingVolume: item.Volume,
	}, nil
}

// EncodeItems packs an item list into a row payload.
func (c *RowCodec) EncodeItems(items []RowItem) ([]byte, error) {
	b, err := msgpack.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode row items: %w", err)
	}
	return b, nil
}

// DecodeItems unpacks a row payload. An empty payload decodes to an empty
// item list.
func (c *RowCodec) DecodeItems(payload []byte) ([]RowItem, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var items []RowItem
	if err := msgpack.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode row items: %w", err)
	}
	return items, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
