package repository

import (
	"context"
	"fmt"

	"CandleHist/internal/domain/models"
	domrepo "CandleHist/internal/domain/repository"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotPartition = "SNAPSHOT"

// SnapshotRepository stores component state blobs in the table storage under
// a dedicated partition, one row per component.
type SnapshotRepository struct {
	table domrepo.TableStorage
}

func NewSnapshotRepository(table domrepo.TableStorage) *SnapshotRepository {
	return &SnapshotRepository{table: table}
}

func (r *SnapshotRepository) Save(ctx context.Context, component string, state []models.Candle) error {
	payload, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", component, err)
	}
	row := domrepo.TableRow{Partition: snapshotPartition, Row: component, Payload: payload}
	if err := r.table.UpsertBatch(ctx, []domrepo.TableRow{row}); err != nil {
		return fmt.Errorf("save %s snapshot: %w", component, err)
	}
	return nil
}

func (r *SnapshotRepository) TryGet(ctx context.Context, component string) ([]models.Candle, bool, error) {
	row, err := r.table.Get(ctx, snapshotPartition, component)
	if err != nil {
		return nil, false, fmt.Errorf("load %s snapshot: %w", component, err)
	}
	if row == nil || len(row.Payload) == 0 {
		return nil, false, nil
	}
	var state []models.Candle
	if err := msgpack.Unmarshal(row.Payload, &state); err != nil {
		return nil, false, fmt.Errorf("decode %s snapshot: %w", component, err)
	}
	return state, true, nil
}

var _ domrepo.SnapshotRepository = (*SnapshotRepository)(nil)
