package repository

import (
	"context"
	"errors"
	"fmt"

	"CandleHist/internal/domain/models"
	domrepo "CandleHist/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisTableStorage implements TableStorage on Redis. Each partition keeps a
// sorted set of row keys (lexicographic range scans) and a hash of row
// payloads.
type RedisTableStorage struct {
	client    *redis.Client
	keyPrefix string
}

// RedisTableOption configures RedisTableStorage.
type RedisTableOption func(*RedisTableStorage)

// WithRedisKeyPrefix sets a custom key prefix.
func WithRedisKeyPrefix(prefix string) RedisTableOption {
	return func(s *RedisTableStorage) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

func NewRedisTableStorage(client *redis.Client, opts ...RedisTableOption) *RedisTableStorage {
	s := &RedisTableStorage{client: client, keyPrefix: "candlehist:table"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisTableStorage) Get(ctx context.Context, partition, row string) (*domrepo.TableRow, error) {
	payload, err := s.client.HGet(ctx, s.dataKey(partition), row).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("redis hget %s/%s", partition, row), err)
	}
	return &domrepo.TableRow{Partition: partition, Row: row, Payload: payload}, nil
}

func (s *RedisTableStorage) GetBatch(ctx context.Context, partition string, rows []string) ([]domrepo.TableRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.dataKey(partition), rows...).Result()
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("redis hmget %s", partition), err)
	}
	out := make([]domrepo.TableRow, 0, len(rows))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, domrepo.TableRow{Partition: partition, Row: rows[i], Payload: []byte(str)})
	}
	return out, nil
}

func (s *RedisTableStorage) UpsertBatch(ctx context.Context, rows []domrepo.TableRow) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, r := range rows {
		pipe.ZAdd(ctx, s.indexKey(r.Partition), redis.Z{Score: 0, Member: r.Row})
		pipe.HSet(ctx, s.dataKey(r.Partition), r.Row, r.Payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return storeUnavailable("redis upsert batch", err)
	}
	return nil
}

func (s *RedisTableStorage) Scan(ctx context.Context, partition, rowFrom, rowTo string) ([]domrepo.TableRow, error) {
	keys, err := s.client.ZRangeByLex(ctx, s.indexKey(partition), &redis.ZRangeBy{
		Min: "[" + rowFrom,
		Max: "[" + rowTo,
	}).Result()
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("redis zrangebylex %s", partition), err)
	}
	return s.GetBatch(ctx, partition, keys)
}

func (s *RedisTableStorage) First(ctx context.Context, partition string) (*domrepo.TableRow, error) {
	keys, err := s.client.ZRangeByLex(ctx, s.indexKey(partition), &redis.ZRangeBy{
		Min:   "-",
		Max:   "+",
		Count: 1,
	}).Result()
	if err != nil {
		return nil, storeUnavailable(fmt.Sprintf("redis first row of %s", partition), err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return s.Get(ctx, partition, keys[0])
}

func (s *RedisTableStorage) Close() error {
	return s.client.Close()
}

func (s *RedisTableStorage) indexKey(partition string) string {
	return s.keyPrefix + ":idx:" + partition
}

func (s *RedisTableStorage) dataKey(partition string) string {
	return s.keyPrefix + ":data:" + partition
}

// storeUnavailable classifies a backend failure as ErrStoreUnavailable while
// keeping the cause in the message.
func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, models.ErrStoreUnavailable)
}

var _ domrepo.TableStorage = (*RedisTableStorage)(nil)
