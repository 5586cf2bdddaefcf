package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("persistent")
	calls := 0
	err := Do(context.Background(), fastConfig(2), func(ctx context.Context, attempt int) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, errors.Is(err, sentinel), "last error is wrapped")
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastConfig(5), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	config := &Config{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, backoffDelay(config, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(config, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(config, 3))
	assert.Equal(t, 10*time.Second, backoffDelay(config, 10), "capped at MaxDelay")
}

func TestWithTimeout_AttemptTimeoutBounded(t *testing.T) {
	calls := 0
	err := WithTimeout(context.Background(), 10*time.Millisecond, fastConfig(2), func(ctx context.Context) error {
		calls++
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls, "a timed-out attempt still gets retried")
}

func TestWithTimeout_NilConfigUsesDefault(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, nil, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
