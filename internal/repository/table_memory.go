package repository

import (
	"context"
	"sort"
	"sync"

	domrepo "CandleHist/internal/domain/repository"
)

// MemoryTableStorage is an in-process TableStorage used for tests and local
// development. Partitions are plain maps; scans sort on demand.
type MemoryTableStorage struct {
	mu         sync.RWMutex
	partitions map[string]map[string][]byte
}

func NewMemoryTableStorage() *MemoryTableStorage {
	return &MemoryTableStorage{partitions: make(map[string]map[string][]byte)}
}

func (s *MemoryTableStorage) Get(_ context.Context, partition, row string) (*domrepo.TableRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.partitions[partition][row]
	if !ok {
		return nil, nil
	}
	return &domrepo.TableRow{Partition: partition, Row: row, Payload: clone(payload)}, nil
}

func (s *MemoryTableStorage) GetBatch(_ context.Context, partition string, rows []string) ([]domrepo.TableRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domrepo.TableRow, 0, len(rows))
	for _, row := range rows {
		if payload, ok := s.partitions[partition][row]; ok {
			out = append(out, domrepo.TableRow{Partition: partition, Row: row, Payload: clone(payload)})
		}
	}
	return out, nil
}

func (s *MemoryTableStorage) UpsertBatch(_ context.Context, rows []domrepo.TableRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		p, ok := s.partitions[r.Partition]
		if !ok {
			p = make(map[string][]byte)
			s.partitions[r.Partition] = p
		}
		p[r.Row] = clone(r.Payload)
	}
	return nil
}

func (s *MemoryTableStorage) Scan(_ context.Context, partition, rowFrom, rowTo string) ([]domrepo.TableRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.partitions[partition]))
	for row := range s.partitions[partition] {
		if row >= rowFrom && row <= rowTo {
			keys = append(keys, row)
		}
	}
	sort.Strings(keys)

	out := make([]domrepo.TableRow, 0, len(keys))
	for _, row := range keys {
		out = append(out, domrepo.TableRow{Partition: partition, Row: row, Payload: clone(s.partitions[partition][row])})
	}
	return out, nil
}

func (s *MemoryTableStorage) First(_ context.Context, partition string) (*domrepo.TableRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := ""
	for row := range s.partitions[partition] {
		if first == "" || row < first {
			first = row
		}
	}
	if first == "" {
		return nil, nil
	}
	return &domrepo.TableRow{Partition: partition, Row: first, Payload: clone(s.partitions[partition][first])}, nil
}

func (s *MemoryTableStorage) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ domrepo.TableStorage = (*MemoryTableStorage)(nil)
