package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy re-runs a failing operation according to some schedule.
// Implementations must return the last error once attempts are exhausted.
type Policy interface {
	Do(ctx context.Context, op func() error) error
}

type fixedDelay struct {
	attempts uint
	delay    time.Duration
}

// FixedDelay retries up to attempts times total, waiting delay between
// tries. attempts < 1 is treated as a single try.
func FixedDelay(attempts int, delay time.Duration) Policy {
	if attempts < 1 {
		attempts = 1
	}
	return fixedDelay{attempts: uint(attempts), delay: delay}
}

func (p fixedDelay) Do(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx,
		func() (struct{}, error) { return struct{}{}, op() },
		backoff.WithBackOff(backoff.NewConstantBackOff(p.delay)),
		backoff.WithMaxTries(p.attempts),
	)
	return err
}

// Permanent marks an error as not retryable so Do returns immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
