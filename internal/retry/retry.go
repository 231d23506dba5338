// Package retry implements the shared exponential-backoff ladder spec.md
// §7 specifies for network/timeout errors: 0.5s, 1s, 2s, 4s, capped,
// three retries maximum. The scheduler's error policy sleeps through the
// Backoff ladder; bankops does not use this package, and nothing in the
// module calls Do.
package retry

import (
	"context"
	"time"

	"github.com/genoclaw/artifacts-agent/internal/clock"
)

// Backoff is the fixed delay sequence of spec.md §7.
var Backoff = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// MaxAttempts is the number of retries (not counting the first attempt).
const MaxAttempts = 3

// Do calls fn, retrying up to MaxAttempts additional times with the
// Backoff delay sequence whenever shouldRetry(err) is true. It returns
// the last error encountered, or nil on the first success.
func Do(ctx context.Context, c clock.Clock, shouldRetry func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt <= MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == MaxAttempts || !shouldRetry(err) {
			return err
		}
		delay := Backoff[attempt]
		if sleepErr := c.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}
