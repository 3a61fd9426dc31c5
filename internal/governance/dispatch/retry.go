package dispatch

import (
	"context"
	"time"

	"crm_automation_backend/platform/config"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy runs fn until it succeeds, fails permanently, or the attempt
// budget runs out.
type RetryPolicy interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// BackoffPolicy retries transient dispatch failures with capped,
// jittered exponential backoff.
type BackoffPolicy struct {
	base       time.Duration
	max        time.Duration
	maxRetries uint64
}

func NewBackoffPolicy(cfg config.DispatchConfig) *BackoffPolicy {
	base := cfg.GetDispatchRetryBaseDelay()
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	maxDelay := cfg.GetDispatchRetryMaxDelay()
	if maxDelay < base {
		maxDelay = base
	}
	retries := cfg.GetDispatchMaxRetries()
	if retries < 0 {
		retries = 0
	}
	return &BackoffPolicy{base: base, max: maxDelay, maxRetries: uint64(retries)}
}

func (p *BackoffPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.base)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(p.max, b)
	return retry.WithMaxRetries(p.maxRetries, b)
}

// Do classifies each failure with IsTransient; permanent ones end the loop
// immediately.
func (p *BackoffPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// NoRetry runs fn once.
type NoRetry struct{}

func (NoRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ RetryPolicy = (*BackoffPolicy)(nil)
	_ RetryPolicy = NoRetry{}
)
