package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CandleHist/internal/domain/models"
	domrepo "CandleHist/internal/domain/repository"
	applogger "CandleHist/pkg/logger"
)

// CandleHistoryStore packs candles into multi-sample rows and persists them
// through a TableStorage backend. Read-merge-write sequences touching the
// same partition are serialized with a per-partition lock; dispatch grouping
// keeps contention low.
type CandleHistoryStore struct {
	table domrepo.TableStorage
	codec *RowCodec
	l     *applogger.Logger

	locks sync.Map // partition -> *sync.Mutex
}

func NewCandleHistoryStore(table domrepo.TableStorage, codec *RowCodec, l *applogger.Logger) *CandleHistoryStore {
	return &CandleHistoryStore{table: table, codec: codec, l: l}
}

// Write merges a group of candles into their storage rows: existing rows are
// read in one batched get, merged through the codec, and written back in one
// batched upsert. Rows that do not exist yet start from an empty item list.
// Returns the number of rows written.
func (s *CandleHistoryStore) Write(ctx context.Context, candles []models.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	type rowGroup struct {
		ref     RowRef
		candles []models.Candle
	}
	groups := make(map[string]*rowGroup)
	order := make([]string, 0, 4)
	partition := ""

	for _, candle := range candles {
		ref, _, err := s.codec.Route(candle)
		if err != nil {
			return 0, err
		}
		if partition == "" {
			partition = ref.Partition
		} else if ref.Partition != partition {
			return 0, fmt.Errorf("write group spans partitions %s and %s: %w", partition, ref.Partition, models.ErrMisroutedCandle)
		}
		g, ok := groups[ref.Row]
		if !ok {
			g = &rowGroup{ref: ref}
			groups[ref.Row] = g
			order = append(order, ref.Row)
		}
		g.candles = append(g.candles, candle)
	}

	unlock := s.lockPartition(partition)
	defer unlock()

	existing, err := s.table.GetBatch(ctx, partition, order)
	if err != nil {
		return 0, fmt.Errorf("read rows of %s: %w", partition, err)
	}
	byRow := make(map[string][]byte, len(existing))
	for _, r := range existing {
		byRow[r.Row] = r.Payload
	}

	out := make([]domrepo.TableRow, 0, len(order))
	for _, rowKey := range order {
		g := groups[rowKey]
		items, err := s.codec.DecodeItems(byRow[rowKey])
		if err != nil {
			return 0, fmt.Errorf("row %s/%s: %w", partition, rowKey, err)
		}
		merged, err := s.codec.MergeInto(items, g.ref, g.candles)
		if err != nil {
			return 0, err
		}
		payload, err := s.codec.EncodeItems(merged)
		if err != nil {
			return 0, fmt.Errorf("row %s/%s: %w", partition, rowKey, err)
		}
		out = append(out, domrepo.TableRow{Partition: partition, Row: rowKey, Payload: payload})
	}

	if err := s.table.UpsertBatch(ctx, out); err != nil {
		return 0, fmt.Errorf("write rows of %s: %w", partition, err)
	}
	if s.l != nil {
		s.l.Debug("candle rows written",
			applogger.String("partition", partition),
			applogger.Int("rows", len(out)),
			applogger.Int("candles", len(candles)))
	}
	return len(out), nil
}

// Query scans the row-key range covering [from, to), decodes every item of
// every returned row, and filters to the requested range.
func (s *CandleHistoryStore) Query(ctx context.Context, assetPairID string, priceType models.PriceType, interval models.TimeInterval, from, to time.Time) ([]models.Candle, error) {
	partition := s.codec.PartitionKey(assetPairID, priceType, interval)
	rowFrom, rowTo := s.codec.RowKeyRange(interval, from, to)

	rows, err := s.table.Scan(ctx, partition, rowFrom, rowTo)
	if err != nil {
		return nil, fmt.Errorf("scan %s [%s, %s]: %w", partition, rowFrom, rowTo, err)
	}

	out := make([]models.Candle, 0, 64)
	for _, row := range rows {
		candles, err := s.decodeRow(row, assetPairID, priceType, interval)
		if err != nil {
			return nil, err
		}
		for _, c := range candles {
			if !c.Timestamp.Before(from) && c.Timestamp.Before(to) {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// FirstCandle returns the earliest candle of the partition by decoding the
// first item of its first row.
func (s *CandleHistoryStore) FirstCandle(ctx context.Context, assetPairID string, priceType models.PriceType, interval models.TimeInterval) (*models.Candle, error) {
	partition := s.codec.PartitionKey(assetPairID, priceType, interval)
	row, err := s.table.First(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("first row of %s: %w", partition, err)
	}
	if row == nil {
		return nil, nil
	}
	candles, err := s.decodeRow(*row, assetPairID, priceType, interval)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	first := candles[0]
	return &first, nil
}

func (s *CandleHistoryStore) decodeRow(row domrepo.TableRow, assetPairID string, priceType models.PriceType, interval models.TimeInterval) ([]models.Candle, error) {
	bucketStart, err := s.codec.BucketStart(row.Row)
	if err != nil {
		return nil, fmt.Errorf("row %s/%s: %w", row.Partition, row.Row, err)
	}
	items, err := s.codec.DecodeItems(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("row %s/%s: %w", row.Partition, row.Row, err)
	}
	out := make([]models.Candle, 0, len(items))
	for _, item := range items {
		c, err := s.codec.ToCandle(item, bucketStart, assetPairID, priceType, interval)
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", row.Partition, row.Row, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CandleHistoryStore) lockPartition(partition string) func() {
	v, _ := s.locks.LoadOrStore(partition, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

var _ domrepo.CandleHistoryStore = (*CandleHistoryStore)(nil)
