package async_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/richxcame/support-chat/pkg/async"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCaptureContext(t *testing.T) {
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-123")
	ctx = logger.ContextWithTicketID(ctx, "t1")

	tc := async.CaptureContext(ctx, "persist")

	assert.Equal(t, "corr-123", tc.CorrelationID)
	assert.Equal(t, "t1", tc.TicketID)
	assert.Equal(t, "persist", tc.TaskName)
	assert.False(t, tc.StartTime.IsZero())
}

func TestTaskContext_NewContextUsesParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	request, requestCancel := context.WithCancel(logger.ContextWithTicketID(context.Background(), "t1"))
	requestCancel()

	ctx := async.CaptureContext(request, "task").NewContext(parent)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, "t1", logger.TicketIDFromContext(ctx))

	cancel()
	assert.Error(t, ctx.Err())
}

func TestGroup_RunsAndWaits(t *testing.T) {
	g := async.NewGroup(context.Background(), zap.NewNop())

	var ran atomic.Int32
	var seen atomic.Value
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-1")
	for i := 0; i < 5; i++ {
		assert.True(t, g.Go(ctx, "count", func(ctx context.Context) {
			seen.Store(logger.CorrelationIDFromContext(ctx))
			ran.Add(1)
		}))
	}
	g.Wait()

	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, "corr-1", seen.Load())
}

func TestGroup_RecoversPanics(t *testing.T) {
	g := async.NewGroup(context.Background(), zap.NewNop())

	assert.True(t, g.Go(context.Background(), "boom", func(context.Context) {
		panic("boom")
	}))

	assert.NotPanics(t, g.Wait)
}

func TestGroup_RefusesAfterWait(t *testing.T) {
	g := async.NewGroup(context.Background(), zap.NewNop())
	g.Wait()

	called := false
	assert.False(t, g.Go(context.Background(), "late", func(context.Context) { called = true }))
	assert.False(t, called)
}
