package assetpairs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
	pkghttp "CandleHist/pkg/http"
	"CandleHist/pkg/logger"
)

// Client looks up asset pairs in the external directory service over HTTP.
// The full pair list is cached with a TTL so lookups on the hot path never
// hit the network.
type Client struct {
	baseURL  string
	http     *pkghttp.Client
	l        *logger.Logger
	ttl      time.Duration
	retries  int
	retryGap time.Duration

	mu        sync.Mutex
	pairs     map[string]models.AssetPair
	fetchedAt time.Time
}

// Option configures Client.
type Option func(*Client)

// WithCacheTTL sets how long a fetched pair list stays fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetries sets the fetch retry count and the gap between attempts.
func WithRetries(n int, gap time.Duration) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
		if gap > 0 {
			c.retryGap = gap
		}
	}
}

func New(baseURL string, httpClient *pkghttp.Client, l *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		l:        l,
		ttl:      5 * time.Minute,
		retries:  3,
		retryGap: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type assetPairDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Accuracy         int    `json:"accuracy"`
	InvertedAccuracy int    `json:"invertedAccuracy"`
	IsDisabled       bool   `json:"isDisabled"`
}

// TryGetEnabledPair returns nil when the pair is unknown or disabled.
func (c *Client) TryGetEnabledPair(ctx context.Context, assetPairID string) (*models.AssetPair, error) {
	pairs, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	pair, ok := pairs[strings.ToUpper(assetPairID)]
	if !ok || pair.IsDisabled {
		return nil, nil
	}
	return &pair, nil
}

// GetAllEnabled returns every enabled pair of the directory.
func (c *Client) GetAllEnabled(ctx context.Context) ([]models.AssetPair, error) {
	pairs, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AssetPair, 0, len(pairs))
	for _, pair := range pairs {
		if !pair.IsDisabled {
			out = append(out, pair)
		}
	}
	return out, nil
}

// load returns the cached pair map, refreshing it when stale. A refresh
// failure falls back to the stale copy when one exists.
func (c *Client) load(ctx context.Context) (map[string]models.AssetPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pairs != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.pairs, nil
	}

	fetched, err := c.fetch(ctx)
	if err != nil {
		if c.pairs != nil {
			c.l.Warn("asset pair refresh failed, serving stale list", logger.Error(err))
			return c.pairs, nil
		}
		return nil, err
	}
	c.pairs = fetched
	c.fetchedAt = time.Now()
	return c.pairs, nil
}

func (c *Client) fetch(ctx context.Context) (map[string]models.AssetPair, error) {
	var dtos []assetPairDTO
	var lastErr error

	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryGap):
			}
		}
		lastErr = c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method: pkghttp.MethodGet,
			URL:    c.baseURL + "/api/assetPairs",
		}, &dtos)
		if lastErr == nil {
			break
		}
		c.l.Warn("asset pair fetch failed",
			logger.Error(lastErr), logger.Int("attempt", attempt+1))
	}
	if lastErr != nil {
		return nil, fmt.Errorf("fetch asset pairs: %w", lastErr)
	}

	pairs := make(map[string]models.AssetPair, len(dtos))
	for _, d := range dtos {
		pairs[strings.ToUpper(d.ID)] = models.AssetPair{
			ID:               d.ID,
			Name:             d.Name,
			Accuracy:         d.Accuracy,
			InvertedAccuracy: d.InvertedAccuracy,
			IsDisabled:       d.IsDisabled,
		}
	}
	return pairs, nil
}

var _ drepo.AssetPairDirectory = (*Client)(nil)
