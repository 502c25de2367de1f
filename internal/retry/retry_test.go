package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSleeps(out *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*out = append(*out, d)
		return nil
	}
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	var sleeps []time.Duration
	p := ScorePolicy().WithSleep(recordSleeps(&sleeps))

	calls := 0
	n, err := Do(context.Background(), p, func(context.Context, int) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, calls)
	// no wait after the last attempt
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps)
}

func TestDo_SucceedsOnSecondAttempt(t *testing.T) {
	var sleeps []time.Duration
	p := ScorePolicy().WithSleep(recordSleeps(&sleeps))

	n, err := Do(context.Background(), p, func(_ context.Context, attempt int) error {
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, sleeps, 1)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	p := ScorePolicy().WithSleep(func(context.Context, time.Duration) error { return nil })

	n, err := Do(context.Background(), p, func(context.Context, int) error {
		return Permanent(sentinel)
	})

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, IsPermanent(err))
}

func TestDo_WrappedPermanentError(t *testing.T) {
	cause := errors.New("invalid score")
	p := ScorePolicy().WithSleep(func(context.Context, time.Duration) error { return nil })

	n, err := Do(context.Background(), p, func(context.Context, int) error {
		return fmt.Errorf("store score: %w", Permanent(cause))
	})

	assert.Equal(t, 1, n)
	assert.Same(t, cause, err)
	assert.False(t, IsPermanent(err))
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Do(ctx, ScorePolicy(), func(context.Context, int) error {
		t.Fatal("fn must not run on a cancelled context")
		return nil
	})
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinearBackoff(t *testing.T) {
	b := Linear(100 * time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, b(3))
}
