package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"CandleHist/internal/domain/models"
)

// fakeStream delivers one candle, fails its first read generation, and
// serves later generations until the context ends.
type fakeStream struct {
	mu         sync.Mutex
	gen        int
	reconnects int
	failFirst  int // Reconnect calls to fail before succeeding
	connected  bool
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Subscribe(context.Context) error { return nil }

func (s *fakeStream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	s.mu.Lock()
	gen := s.gen
	s.gen++
	s.mu.Unlock()

	candles := make(chan models.Candle, 4)
	errs := make(chan error, 1)
	if gen == 0 {
		candles <- minuteCandle(0, 100)
		errs <- errors.New("read failed")
		close(candles)
		close(errs)
		return candles, errs
	}
	candles <- minuteCandle(1, 101)
	go func() {
		<-ctx.Done()
		close(candles)
		close(errs)
	}()
	return candles, errs
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	if s.failFirst > 0 {
		s.failFirst--
		return errors.New("dial failed")
	}
	s.connected = true
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestFeedCollectorReconnectsAndResumes(t *testing.T) {
	f := newManagerFixture(t)
	stream := &fakeStream{failFirst: 1}
	collector := NewFeedCollector(stream, f.manager, nopMetrics{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := collector.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The first generation's candle arrives before the read failure; the
	// second candle is only reachable after a successful reconnect and a
	// fresh Read.
	from := time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)
	waitFor(t, func() bool {
		got, err := f.manager.GetCandles(context.Background(), "BTCUSD", models.PriceTypeBid, models.IntervalMinute, from, from.Add(2*time.Minute))
		return err == nil && len(got) == 2
	})

	// One failed dial plus the successful attempt.
	if n := stream.reconnectCount(); n != 2 {
		t.Fatalf("reconnect attempts = %d, want 2", n)
	}
}
