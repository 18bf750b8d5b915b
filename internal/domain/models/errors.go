package models

import "errors"

// Sentinel errors of the candle core. Callers classify failures with
// errors.Is; wrapping layers add operation context with fmt.Errorf("...: %w").
var (
	// ErrInvalidArgument reports malformed request parameters. Caller-caused,
	// never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedAssetPair reports an asset pair without a configured
	// durable destination.
	ErrUnsupportedAssetPair = errors.New("unsupported asset pair")

	// ErrInvalidAlignment reports a timestamp that does not fall on its
	// declared interval's boundary.
	ErrInvalidAlignment = errors.New("timestamp is not aligned to interval")

	// ErrMisroutedCandle reports a candle whose storage coordinates do not
	// match the row it is being merged into.
	ErrMisroutedCandle = errors.New("candle routed to wrong row")

	// ErrStoreUnavailable reports a transport or backend failure of the
	// durable store. The persistence queue retries it with backoff; the read
	// path surfaces it to the caller.
	ErrStoreUnavailable = errors.New("candle store unavailable")
)
