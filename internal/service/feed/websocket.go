package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
	"CandleHist/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a CandleStream backed by a WebSocket candle feed.
type Client struct {
	url            string
	apiKey         string
	assetPairs     []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func New(url, apiKey string, assetPairs []string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) drepo.CandleStream {
	return &Client{
		url:            url,
		apiKey:         apiKey,
		assetPairs:     assetPairs,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.url
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.url, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.l.Info("candle feed connected", logger.String("url", c.url))
	return nil
}

// Subscribe subscribes to candle updates for the configured asset pairs.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.currentConn()
	if conn == nil {
		return fmt.Errorf("feed not connected")
	}
	for _, pair := range c.assetPairs {
		msg := map[string]string{"type": "subscribe", "assetPairId": pair}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", pair, err)
		}
		c.l.Debug("subscribed to candle feed", logger.String("assetPair", pair))
	}
	return nil
}

type wsCandle struct {
	AssetPairID   string  `json:"assetPairId"`
	PriceType     string  `json:"priceType"`
	TimeInterval  string  `json:"timeInterval"`
	Timestamp     int64   `json:"timestamp"` // ms
	Open          float64 `json:"open"`
	Close         float64 `json:"close"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	TradingVolume float64 `json:"tradingVolume"`
}

type wsMessage struct {
	Type    string     `json:"type"`
	Candles []wsCandle `json:"candles"`
}

// Read streams candle updates and errors. The channels belong to the
// connection current at call time; after a reconnect, call Read again for
// fresh ones.
func (c *Client) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 1024)
	errs := make(chan error, 1)
	conn := c.currentConn()

	// ping loop, bound to this connection
	go func() {
		if conn == nil {
			return
		}
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if conn.WriteMessage(websocket.PingMessage, nil) != nil {
					return
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-candle frames
					continue
				}
				if m.Type != "candles" {
					continue
				}
				for _, d := range m.Candles {
					candle, err := c.toCandle(d)
					if err != nil {
						c.l.Warn("bad candle frame", logger.Error(err))
						continue
					}
					select {
					case candles <- candle:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return candles, errs
}

func (c *Client) toCandle(d wsCandle) (models.Candle, error) {
	priceType := models.ParsePriceType(d.PriceType)
	if priceType == models.PriceTypeUnspecified {
		return models.Candle{}, fmt.Errorf("unknown price type %q: %w", d.PriceType, models.ErrInvalidArgument)
	}
	interval := models.ParseTimeInterval(d.TimeInterval)
	if interval == models.IntervalUnspecified {
		return models.Candle{}, fmt.Errorf("unknown time interval %q: %w", d.TimeInterval, models.ErrInvalidArgument)
	}
	return models.Candle{
		AssetPairID:   d.AssetPairID,
		PriceType:     priceType,
		TimeInterval:  interval,
		Timestamp:     time.UnixMilli(d.Timestamp).UTC(),
		Open:          d.Open,
		Close:         d.Close,
		High:          d.High,
		Low:           d.Low,
		TradingVolume: d.TradingVolume,
	}, nil
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	return c.conn
}
