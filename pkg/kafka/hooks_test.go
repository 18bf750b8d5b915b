package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingHook struct {
	NoopHook
	before  int
	after   int
	onError int
	lastErr error
}

func (h *recordingHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	h.before++
	return ctx, km, data, nil
}

func (h *recordingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	h.after++
}

func (h *recordingHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	h.onError++
	h.lastErr = err
}

type ctxMarkerKey struct{}

type ctxMarkerHook struct{ NoopHook }

func (ctxMarkerHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return context.WithValue(ctx, ctxMarkerKey{}, "set"), km, data, nil
}

type panicHook struct{ NoopHook }

func (panicHook) BeforeHandle(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
	panic("boom")
}

func (panicHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	panic("boom")
}

func TestHookChainThreadsContext(t *testing.T) {
	chain := NewHookChain(ctxMarkerHook{}, nil)

	ctx, _, _, err := chain.BeforeHandle(context.Background(), "candles", kafka.Message{}, []byte("x"))
	if err != nil {
		t.Fatalf("BeforeHandle: %v", err)
	}
	if ctx.Value(ctxMarkerKey{}) != "set" {
		t.Fatalf("context value from earlier hook not threaded through")
	}
}

func TestHookChainPanicBecomesError(t *testing.T) {
	rec := &recordingHook{}
	chain := NewHookChain(panicHook{}, rec)

	_, _, _, err := chain.BeforeHandle(context.Background(), "candles", kafka.Message{}, nil)
	if err == nil {
		t.Fatalf("expected error from panicking hook")
	}
	var hookErr *HookError
	if !errors.As(err, &hookErr) || hookErr.Code != "ERR_PANIC" {
		t.Fatalf("error %v, want HookError with code ERR_PANIC", err)
	}
	if rec.before != 0 {
		t.Fatalf("later hook ran after the chain failed")
	}
	if rec.onError != 1 {
		t.Fatalf("OnError called %d times, want 1", rec.onError)
	}
}

func TestHookChainAfterHandlePanicSafe(t *testing.T) {
	rec := &recordingHook{}
	chain := NewHookChain(rec, panicHook{})

	// Reverse order runs the panicking hook first; the rest of the chain
	// must still execute.
	chain.AfterHandle(context.Background(), "candles", kafka.Message{}, nil, nil)
	if rec.after != 1 {
		t.Fatalf("AfterHandle called %d times, want 1", rec.after)
	}
}

func TestObservabilityHookReportsError(t *testing.T) {
	var gotTopic, gotTrace string
	var gotErr error
	hook := &ObservabilityHook{
		ReportError: func(topic, traceID string, err error) {
			gotTopic, gotTrace, gotErr = topic, traceID, err
		},
	}

	km := kafka.Message{
		Time:    time.Now().Add(-time.Second),
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc-123")}},
	}
	ctx, _, _, err := hook.BeforeHandle(context.Background(), "candles", km, nil)
	if err != nil {
		t.Fatalf("BeforeHandle: %v", err)
	}

	handleErr := errors.New("decode failed")
	hook.OnError(ctx, "candles", km, nil, handleErr)
	if gotTopic != "candles" || gotTrace != "abc-123" || !errors.Is(gotErr, handleErr) {
		t.Fatalf("reported (%q, %q, %v)", gotTopic, gotTrace, gotErr)
	}
}

func TestExtractTraceID(t *testing.T) {
	if id := ExtractTraceID(kafka.Message{}); id != "" {
		t.Fatalf("trace id %q from headerless message, want empty", id)
	}
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "other", Value: []byte("x")},
		{Key: "trace_id", Value: []byte("t-1")},
	}}
	if id := ExtractTraceID(msg); id != "t-1" {
		t.Fatalf("trace id %q, want t-1", id)
	}
}
