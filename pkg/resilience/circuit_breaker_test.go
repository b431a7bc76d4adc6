package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerTripsAndReturnsOpenError(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-breaker",
		Timeout:          50 * time.Millisecond,
		Interval:         50 * time.Millisecond,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}, nil)

	ctx := context.Background()
	failingOp := func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	}

	for i := 0; i < 2; i++ {
		if _, err := breaker.Execute(ctx, failingOp); err == nil {
			t.Fatalf("expected failure on iteration %d", i)
		}
	}

	if breaker.Allow() {
		t.Fatalf("breaker should be open after consecutive failures")
	}

	if _, err := breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		return "ok", nil
	}); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerPassesThroughOnSuccess(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "success-breaker",
		Timeout:          time.Second,
		Interval:         time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
	}, nil)

	ctx := context.Background()
	result, err := breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		return "response", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.(string) != "response" {
		t.Fatalf("expected response, got %v", result)
	}
}

func TestCircuitBreakerFallbackWhenOpen(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "fallback-breaker",
		Timeout:          time.Second,
		Interval:         time.Second,
		FailureThreshold: 1,
	}, func(context.Context, error) (interface{}, error) {
		return "cached", nil
	})

	ctx := context.Background()
	_, _ = breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})

	result, err := breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		t.Fatalf("operation must not run while the breaker is open")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(string) != "cached" {
		t.Fatalf("expected fallback result, got %v", result)
	}
}

func TestCircuitBreakerIgnoresSuccessfulErrors(t *testing.T) {
	clientErr := errors.New("bad request")
	breaker := NewCircuitBreaker(Settings{
		Name:             "client-error-breaker",
		Timeout:          time.Second,
		Interval:         time.Second,
		FailureThreshold: 1,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, clientErr)
		},
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
			return nil, clientErr
		})
		if !errors.Is(err, clientErr) {
			t.Fatalf("expected client error, got %v", err)
		}
	}

	if !breaker.Allow() {
		t.Fatalf("client errors must not open the breaker")
	}
}

func TestNilCircuitBreakerRunsOperation(t *testing.T) {
	var breaker *CircuitBreaker
	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return 42, nil
	})
	if err != nil || result.(int) != 42 {
		t.Fatalf("expected passthrough, got %v %v", result, err)
	}
	if !breaker.Allow() {
		t.Fatalf("nil breaker should always allow")
	}
}
