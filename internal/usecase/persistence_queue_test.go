package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"CandleHist/internal/domain/models"
)

// fakeHistoryStore records write groups and can be scripted to fail.
type fakeHistoryStore struct {
	mu        sync.Mutex
	groups    [][]models.Candle
	errs      []error // consumed one per Write call before succeeding
	stickyErr error   // returned by every Write once errs is exhausted
	attempts  int
}

func (s *fakeHistoryStore) Write(_ context.Context, candles []models.Candle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return 0, err
		}
	} else if s.stickyErr != nil {
		return 0, s.stickyErr
	}
	group := make([]models.Candle, len(candles))
	copy(group, candles)
	s.groups = append(s.groups, group)
	return 1, nil
}

func (s *fakeHistoryStore) Query(context.Context, string, models.PriceType, models.TimeInterval, time.Time, time.Time) ([]models.Candle, error) {
	return nil, nil
}

func (s *fakeHistoryStore) FirstCandle(context.Context, string, models.PriceType, models.TimeInterval) (*models.Candle, error) {
	return nil, nil
}

func (s *fakeHistoryStore) writeAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *fakeHistoryStore) writtenGroups() [][]models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]models.Candle, len(s.groups))
	copy(out, s.groups)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func queueCandle(pair string, minute int) models.Candle {
	return models.Candle{
		AssetPairID:  pair,
		PriceType:    models.PriceTypeBid,
		TimeInterval: models.IntervalMinute,
		Timestamp:    time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute),
		Open:         1, Close: 2, High: 3, Low: 0.5,
	}
}

func TestQueueFlushesAndGroupsBySeries(t *testing.T) {
	store := &fakeHistoryStore{}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t),
		WithFlushInterval(10*time.Millisecond))

	q.EnqueueCandle(queueCandle("BTCUSD", 0))
	q.EnqueueCandle(queueCandle("ETHUSD", 0))
	q.EnqueueCandle(queueCandle("BTCUSD", 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(context.Background())

	waitFor(t, func() bool { return len(store.writtenGroups()) == 2 })

	groups := store.writtenGroups()
	byPair := make(map[string]int)
	for _, g := range groups {
		byPair[g[0].AssetPairID] = len(g)
		for _, c := range g[1:] {
			if c.AssetPairID != g[0].AssetPairID {
				t.Fatalf("group mixes %s and %s", g[0].AssetPairID, c.AssetPairID)
			}
		}
	}
	if byPair["BTCUSD"] != 2 || byPair["ETHUSD"] != 1 {
		t.Fatalf("group sizes %v", byPair)
	}

	waitFor(t, func() bool { return q.Health().TotalCandlesPersistedCount == 3 })
	info := q.Health()
	if info.TotalCandleRowsPersistedCount != 2 {
		t.Fatalf("rows persisted = %d, want 2", info.TotalCandleRowsPersistedCount)
	}
	if info.CandlesToDispatchQueueLength != 0 {
		t.Fatalf("dispatch queue length = %d, want 0", info.CandlesToDispatchQueueLength)
	}
}

func TestQueueRetriesUnavailableStore(t *testing.T) {
	store := &fakeHistoryStore{errs: []error{models.ErrStoreUnavailable, models.ErrStoreUnavailable}}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t),
		WithFlushInterval(10*time.Millisecond),
		WithRetryBackoff(5*time.Millisecond, 20*time.Millisecond))

	q.EnqueueCandle(queueCandle("BTCUSD", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(context.Background())

	waitFor(t, func() bool { return len(store.writtenGroups()) == 1 })
	if got := q.Health().TotalCandlesPersistedCount; got != 1 {
		t.Fatalf("candles persisted = %d, want 1", got)
	}
}

func TestQueueDropsGroupOnPermanentError(t *testing.T) {
	store := &fakeHistoryStore{errs: []error{errors.New("corrupt row")}}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t),
		WithFlushInterval(10*time.Millisecond))

	// Two series in one batch: the first group fails and is dropped, the
	// second must still be written.
	q.EnqueueCandle(queueCandle("BTCUSD", 0))
	q.EnqueueCandle(queueCandle("ETHUSD", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop(context.Background())

	waitFor(t, func() bool { return len(store.writtenGroups()) == 1 })
	groups := store.writtenGroups()
	if groups[0][0].AssetPairID != "ETHUSD" {
		t.Fatalf("surviving group is %s, want ETHUSD", groups[0][0].AssetPairID)
	}
}

func TestQueueStopFlushesPending(t *testing.T) {
	store := &fakeHistoryStore{}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t))

	q.EnqueueCandle(queueCandle("BTCUSD", 0))
	q.EnqueueCandle(queueCandle("BTCUSD", 1))

	// Stop without Start still drains the buffer.
	q.Stop(context.Background())

	groups := store.writtenGroups()
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("written groups %v", groups)
	}
	if len(q.GetState()) != 0 {
		t.Fatalf("state not empty after clean stop")
	}
}

func TestQueueStopSnapshotsInflightBatch(t *testing.T) {
	store := &fakeHistoryStore{stickyErr: models.ErrStoreUnavailable}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t),
		WithFlushInterval(10*time.Millisecond),
		WithRetryBackoff(5*time.Millisecond, 20*time.Millisecond))

	q.EnqueueCandle(queueCandle("BTCUSD", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	// Wait until the batch has reached the persister and is parked in
	// retry backoff against the unavailable store.
	waitFor(t, func() bool { return store.writeAttempts() >= 1 })

	stopCtx, stopCancel := context.WithCancel(context.Background())
	stopCancel()
	q.Stop(stopCtx)

	state := q.GetState()
	if len(state) != 1 {
		t.Fatalf("state after stop has %d candles, want 1", len(state))
	}
	if state[0].AssetPairID != "BTCUSD" {
		t.Fatalf("state holds candle for %s, want BTCUSD", state[0].AssetPairID)
	}
}

func TestQueueStopKeepsUnflushedCandles(t *testing.T) {
	store := &fakeHistoryStore{errs: []error{errors.New("corrupt row")}}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t))

	q.EnqueueCandle(queueCandle("BTCUSD", 0))
	q.Stop(context.Background())

	state := q.GetState()
	if len(state) != 1 {
		t.Fatalf("state has %d candles, want the unflushed one", len(state))
	}
}

func TestQueueStateRoundTrip(t *testing.T) {
	store := &fakeHistoryStore{}
	q := NewPersistenceQueue(store, nopMetrics{}, testLogger(t))

	q.EnqueueCandle(queueCandle("BTCUSD", 0))
	q.EnqueueCandle(queueCandle("BTCUSD", 1))

	state := q.GetState()
	if len(state) != 2 {
		t.Fatalf("state has %d candles, want 2", len(state))
	}
	if desc := q.DescribeState(state); desc != "2 candles pending for 1 series" {
		t.Fatalf("unexpected description %q", desc)
	}

	restored := NewPersistenceQueue(store, nopMetrics{}, testLogger(t))
	restored.SetState(state)
	if got := restored.Health().CandlesToDispatchQueueLength; got != 2 {
		t.Fatalf("dispatch queue length = %d, want 2", got)
	}
}
