package core

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackoff builds the 100ms → ×1.5 → capped-at-5000ms policy shared by
// connector reconnection and round-robin sends with no live peer.
// MaxElapsedTime is left at 0 (never give up); callers that need to bound
// the number of cap-length waits count retries themselves against
// backoff.NextBackOff's return value. RandomizationFactor is zeroed: the
// library's default 50% jitter would let an at-cap return range anywhere
// from ~2500ms to ~7500ms, which breaks any caller comparing the returned
// interval against the 5000ms cap to count full cap-length waits.
func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 1.5
	b.MaxInterval = 5000 * time.Millisecond
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
