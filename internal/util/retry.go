// Package util hosts small helpers shared across the export client.
package util //nolint:revive // package name util hosts shared helpers

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff configures an exponential retry schedule for backoff.Retry.
type Backoff struct {
	// Initial is the first delay. Zero keeps the library default.
	Initial time.Duration
	// Max caps each delay. Zero keeps the library default.
	Max time.Duration
	// Multiplier grows the delay between attempts. Zero keeps the library default.
	Multiplier float64
	// MaxTries bounds the number of calls. Zero means unlimited.
	MaxTries uint
}

// Options builds the retry options. Elapsed time is not bounded; callers
// bound the wait with MaxTries or their context.
func (b Backoff) Options() []backoff.RetryOption {
	eb := backoff.NewExponentialBackOff()
	if b.Initial > 0 {
		eb.InitialInterval = b.Initial
	}
	if b.Max > 0 {
		eb.MaxInterval = b.Max
	}
	if b.Multiplier > 0 {
		eb.Multiplier = b.Multiplier
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(0),
	}
	if b.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(b.MaxTries))
	}
	return opts
}
