package candlecache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"CandleHist/internal/domain/models"
	domrepo "CandleHist/internal/domain/repository"
)

const defaultSeriesLimit = 3000

// Cache keeps the most recent candles per (asset pair, price type, interval)
// series, sorted by timestamp. Each series is bounded: once the limit is
// reached the oldest candles are evicted, which moves the coverage horizon
// forward.
type Cache struct {
	mu     sync.RWMutex
	series map[string]*series
	limit  int
}

type series struct {
	mu      sync.Mutex
	candles []models.Candle
}

// Option configures Cache.
type Option func(*Cache)

// WithSeriesLimit bounds the number of candles kept per series.
func WithSeriesLimit(limit int) Option {
	return func(c *Cache) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		series: make(map[string]*series),
		limit:  defaultSeriesLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache upserts a candle into its series. A candle with a timestamp already
// present replaces the stored one.
func (c *Cache) Cache(candle models.Candle) {
	s := c.getOrCreate(candle.CacheKey())

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.candles), func(i int) bool {
		return !s.candles[i].Timestamp.Before(candle.Timestamp)
	})
	if i < len(s.candles) && s.candles[i].Timestamp.Equal(candle.Timestamp) {
		s.candles[i] = candle
		return
	}
	s.candles = append(s.candles, models.Candle{})
	copy(s.candles[i+1:], s.candles[i:])
	s.candles[i] = candle

	if over := len(s.candles) - c.limit; over > 0 {
		s.candles = append(s.candles[:0:0], s.candles[over:]...)
	}
}

// GetCandles returns cached candles with timestamps in [from, to),
// ascending.
func (c *Cache) GetCandles(assetPairID string, priceType models.PriceType, interval models.TimeInterval, from, to time.Time) []models.Candle {
	s := c.lookup(models.CacheKey(assetPairID, priceType, interval))
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lo := sort.Search(len(s.candles), func(i int) bool {
		return !s.candles[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s.candles), func(i int) bool {
		return !s.candles[i].Timestamp.Before(to)
	})
	if lo >= hi {
		return nil
	}
	out := make([]models.Candle, hi-lo)
	copy(out, s.candles[lo:hi])
	return out
}

// GetCoverageHorizon reports the oldest cached timestamp of a series. The
// second result is false when the series holds no candles.
func (c *Cache) GetCoverageHorizon(assetPairID string, priceType models.PriceType, interval models.TimeInterval) (time.Time, bool) {
	s := c.lookup(models.CacheKey(assetPairID, priceType, interval))
	if s == nil {
		return time.Time{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.candles) == 0 {
		return time.Time{}, false
	}
	return s.candles[0].Timestamp, true
}

// GetState flattens every series into a single slice for snapshotting.
func (c *Cache) GetState() []models.Candle {
	c.mu.RLock()
	all := make([]*series, 0, len(c.series))
	for _, s := range c.series {
		all = append(all, s)
	}
	c.mu.RUnlock()

	var out []models.Candle
	for _, s := range all {
		s.mu.Lock()
		out = append(out, s.candles...)
		s.mu.Unlock()
	}
	return out
}

// SetState replaces the cache contents with a previously captured state.
func (c *Cache) SetState(state []models.Candle) {
	c.mu.Lock()
	c.series = make(map[string]*series)
	c.mu.Unlock()

	for _, candle := range state {
		c.Cache(candle)
	}
}

// DescribeState summarizes a state slice for logging.
func (c *Cache) DescribeState(state []models.Candle) string {
	keys := make(map[string]int)
	for _, candle := range state {
		keys[candle.CacheKey()]++
	}
	return fmt.Sprintf("%d candles in %d series", len(state), len(keys))
}

func (c *Cache) lookup(key string) *series {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.series[key]
}

func (c *Cache) getOrCreate(key string) *series {
	c.mu.RLock()
	s := c.series[key]
	c.mu.RUnlock()
	if s != nil {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s = c.series[key]; s == nil {
		s = &series{}
		c.series[key] = s
	}
	return s
}

var (
	_ domrepo.CandlesCache = (*Cache)(nil)
	_ domrepo.StateHolder  = (*Cache)(nil)
)
