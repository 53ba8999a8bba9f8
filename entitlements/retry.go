package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// DefaultRetryPolicy is a short exponential backoff capped at five retries.
func DefaultRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 3 * time.Second
	return backoff.WithMaxRetries(b, 5)
}

// RetryContention runs op until it succeeds, fails with anything other than
// ErrContention, or policy gives up. Insufficient credit is never retried.
func RetryContention(ctx context.Context, policy backoff.BackOff, op func(context.Context) error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return backoff.RetryNotify(
		func() error {
			err := op(ctx)
			if err == nil || errors.Is(err, ErrContention) {
				return err
			}
			return backoff.Permanent(err)
		},
		backoff.WithContext(policy, ctx),
		func(err error, d time.Duration) {
			logrus.WithError(err).WithField("retry_in", d).Debug("entitlement contention, retrying")
		},
	)
}
