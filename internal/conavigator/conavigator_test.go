package conavigator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/liminalqa/liminal/internal/conavigator"
)

func TestExecuteWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	n := conavigator.New(3, time.Millisecond, time.Millisecond)

	attempts := 0
	err := n.ExecuteWithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}

		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_ExhaustsBudgetAndReturnsLastError(t *testing.T) {
	n := conavigator.New(2, time.Millisecond, time.Millisecond)

	attempts := 0
	sentinel := errors.New("still failing")

	err := n.ExecuteWithRetry(context.Background(), func() error {
		attempts++

		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, attempts) // initial attempt + 2 retries
}

func TestExecuteWithRetry_ContextCancelStopsRetries(t *testing.T) {
	n := conavigator.New(10, 50*time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := n.ExecuteWithRetry(ctx, func() error {
		attempts++
		if attempts == 1 {
			cancel()
		}

		return errors.New("keeps failing")
	})

	require.Error(t, err)
	require.LessOrEqual(t, attempts, 2)
}

func TestFlexibleWait_DoublesPerAttempt(t *testing.T) {
	n := conavigator.Default()

	w0 := n.FlexibleWait(context.Background(), 100*time.Millisecond, 0)
	w1 := n.FlexibleWait(context.Background(), 100*time.Millisecond, 1)
	w2 := n.FlexibleWait(context.Background(), 100*time.Millisecond, 2)

	require.InDelta(t, 100*time.Millisecond, w0, float64(5*time.Millisecond))
	require.InDelta(t, 200*time.Millisecond, w1, float64(5*time.Millisecond))
	require.InDelta(t, 400*time.Millisecond, w2, float64(5*time.Millisecond))
}

func TestFlexibleWait_CancelledContextStops(t *testing.T) {
	n := conavigator.Default()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, backoff.Stop, n.FlexibleWait(ctx, time.Second, 0))
}
