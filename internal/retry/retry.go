// Package retry implements bounded, jittered backoff policies and a
// cooperative retry helper.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Policy controls attempt count and delay growth between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Multiplier grows the delay per attempt; 1 yields a flat jittered
	// delay, 2 doubles it each attempt.
	Multiplier float64
}

// FetchPolicy is the transport retry policy: capped attempts with a
// jittered 2-5 second delay between them.
func FetchPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    5 * time.Second,
		Multiplier:  1,
	}
}

// QuotaPolicy is the external-service quota policy: exponential growth
// from the base delay with a small random jitter.
func QuotaPolicy(maxAttempts int, base time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if base <= 0 {
		base = 5 * time.Second
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    2 * time.Minute,
		Multiplier:  2,
	}
}

// Backoff returns the wait duration before the attempt-th retry
// (zero-based). Half of the delay is fixed, the other half randomized so
// concurrent workers do not retry in lockstep.
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

// Error implements error.
func (p Permanent) Error() string { return p.Err.Error() }

// Unwrap exposes the wrapped error.
func (p Permanent) Unwrap() error { return p.Err }

// Do invokes fn up to the policy's attempt bound, suspending between
// attempts. It stops early on context cancellation or a Permanent error
// and returns the last error when all attempts fail.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
