package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domrepo "CandleHist/internal/domain/repository"
	"CandleHist/pkg/clickhouse"
)

var candleRowsSchema = []string{
	`CREATE TABLE IF NOT EXISTS candle_rows (
		partition String,
		row       String,
		payload   String,
		updated   DateTime64(3) DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated)
	ORDER BY (partition, row)`,
}

// ClickHouseTableStorage implements TableStorage on a ReplacingMergeTree
// table. Rows are deduplicated by (partition, row) keeping the latest
// payload, so upserts are plain inserts and reads take the newest version.
type ClickHouseTableStorage struct {
	client *clickhouse.Client
}

func NewClickHouseTableStorage(ctx context.Context, client *clickhouse.Client) (*ClickHouseTableStorage, error) {
	if err := client.InitSchema(ctx, candleRowsSchema); err != nil {
		return nil, storeUnavailable("clickhouse init schema", err)
	}
	return &ClickHouseTableStorage{client: client}, nil
}

func (s *ClickHouseTableStorage) Get(ctx context.Context, partition, row string) (*domrepo.TableRow, error) {
	const query = `SELECT payload FROM candle_rows
		WHERE partition = ? AND row = ?
		ORDER BY updated DESC LIMIT 1`

	var payload string
	err := s.client.DB().QueryRowContext(ctx, query, partition, row).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("clickhouse get %s/%s", partition, row), err)
	}
	return &domrepo.TableRow{Partition: partition, Row: row, Payload: []byte(payload)}, nil
}

func (s *ClickHouseTableStorage) GetBatch(ctx context.Context, partition string, rows []string) ([]domrepo.TableRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rows)), ",")
	query := fmt.Sprintf(`SELECT row, argMax(payload, updated) FROM candle_rows
		WHERE partition = ? AND row IN (%s)
		GROUP BY row
		ORDER BY row ASC`, placeholders)

	args := make([]any, 0, len(rows)+1)
	args = append(args, partition)
	for _, r := range rows {
		args = append(args, r)
	}
	return s.queryRows(ctx, partition, query, args...)
}

func (s *ClickHouseTableStorage) UpsertBatch(ctx context.Context, rows []domrepo.TableRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return storeUnavailable("clickhouse begin batch", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candle_rows (partition, row, payload) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return storeUnavailable("clickhouse prepare batch", err)
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Partition, r.Row, string(r.Payload)); err != nil {
			_ = tx.Rollback()
			return storeUnavailable("clickhouse insert row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeUnavailable("clickhouse commit batch", err)
	}
	return nil
}

func (s *ClickHouseTableStorage) Scan(ctx context.Context, partition, rowFrom, rowTo string) ([]domrepo.TableRow, error) {
	const query = `SELECT row, argMax(payload, updated) FROM candle_rows
		WHERE partition = ? AND row >= ? AND row <= ?
		GROUP BY row
		ORDER BY row ASC`
	return s.queryRows(ctx, partition, query, partition, rowFrom, rowTo)
}

func (s *ClickHouseTableStorage) First(ctx context.Context, partition string) (*domrepo.TableRow, error) {
	const query = `SELECT row, argMax(payload, updated) FROM candle_rows
		WHERE partition = ?
		GROUP BY row
		ORDER BY row ASC LIMIT 1`

	rows, err := s.queryRows(ctx, partition, query, partition)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *ClickHouseTableStorage) Close() error {
	return s.client.Close()
}

func (s *ClickHouseTableStorage) queryRows(ctx context.Context, partition, query string, args ...any) ([]domrepo.TableRow, error) {
	rs, err := s.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("clickhouse scan %s", partition), err)
	}
	defer rs.Close()

	var out []domrepo.TableRow
	for rs.Next() {
		var row, payload string
		if err := rs.Scan(&row, &payload); err != nil {
			return nil, storeUnavailable("clickhouse scan row", err)
		}
		out = append(out, domrepo.TableRow{Partition: partition, Row: row, Payload: []byte(payload)})
	}
	if err := rs.Err(); err != nil {
		return nil, storeUnavailable("clickhouse iterate rows", err)
	}
	return out, nil
}

var _ domrepo.TableStorage = (*ClickHouseTableStorage)(nil)
