package usecase

import (
	"context"

	"CandleHist/internal/domain/models"
	drepo "CandleHist/internal/domain/repository"
)

// FeedCollector reads candle updates from a stream and routes them through
// the manager. Streams that fail are reconnected in place.
type FeedCollector struct {
	stream  drepo.CandleStream
	manager *CandleManager
	metrics drepo.Metrics
}

func NewFeedCollector(stream drepo.CandleStream, manager *CandleManager, metrics drepo.Metrics) *FeedCollector {
	return &FeedCollector{stream: stream, manager: manager, metrics: metrics}
}

// IsConnected returns true if the candle stream is connected.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	candleCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, candleCh, errCh)
	return nil
}

func (c *FeedCollector) consume(ctx context.Context, candleCh <-chan models.Candle, errCh <-chan error) {
	for {
		for candleCh != nil || errCh != nil {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					c.metrics.RecordError("stream")
				}
			case candle, ok := <-candleCh:
				if !ok {
					candleCh = nil
					continue
				}
				c.manager.ProcessCandle(candle)
			}
		}
		// both channels closed: the stream's read loop exited, so
		// reconnect and resume with fresh channels
		if !c.reconnect(ctx) {
			return
		}
		candleCh, errCh = c.stream.Read(ctx)
	}
}

func (c *FeedCollector) reconnect(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if err := c.stream.Reconnect(ctx); err == nil {
			return true
		}
		c.metrics.RecordError("stream_reconnect")
	}
}

func (c *FeedCollector) Stop() error { return c.stream.Close() }
