package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1}
	attempts := 0
	err := Do(context.Background(), p, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1}
	attempts := 0
	sentinel := errors.New("still broken")
	err := Do(context.Background(), p, func(context.Context) error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Multiplier: 1}
	attempts := 0
	sentinel := errors.New("bad request")
	err := Do(context.Background(), p, func(context.Context) error {
		attempts++
		return Permanent{Err: sentinel}
	})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, attempts)
}

func TestDoRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, BaseDelay: time.Hour, Multiplier: 1}
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, func(context.Context) error {
			attempts++
			return errors.New("transient")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not stop at its suspension point after cancel")
	}
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Second, Multiplier: 1}
	for attempt := 0; attempt < 3; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 2*time.Second)
	}

	exp := QuotaPolicy(5, 5*time.Second)
	require.Greater(t, exp.Backoff(3), exp.BaseDelay, "exponential policy should grow past its base")
}
