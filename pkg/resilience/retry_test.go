package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		Backoff:     Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastRetryConfig(3), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	config := fastRetryConfig(5)
	config.RetryableChecker = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	_, err := Retry(context.Background(), config, func(context.Context) (interface{}, error) {
		calls++
		return nil, permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetryConfig(2), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("still failing")
	})

	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 2, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, fastRetryConfig(3), func(context.Context) (interface{}, error) {
		t.Fatalf("operation must not run with a cancelled context")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryDoesNotRetryOpenCircuit(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastRetryConfig(3), func(context.Context) (interface{}, error) {
		calls++
		return nil, ErrCircuitOpen
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Equal(t, 400*time.Millisecond, b.Delay(3))
	assert.Equal(t, time.Second, b.Delay(10))
}

func TestBackoffJitterStaysWithinBound(t *testing.T) {
	b := Backoff{Initial: 50 * time.Millisecond, Max: time.Second, Multiplier: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 100*time.Millisecond)
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 404, 409, 422} {
		assert.False(t, IsRetryableHTTPStatus(code), "status %d", code)
	}
}
