package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/richxcame/support-chat/pkg/logger"
	"go.uber.org/zap"
)

// TaskContext holds the context values propagated to async tasks
type TaskContext struct {
	CorrelationID string
	TicketID      string
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		TicketID:      logger.TicketIDFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext returns parent carrying the captured values. Cancellation
// comes from parent, not from the context the values were captured from.
func (tc TaskContext) NewContext(parent context.Context) context.Context {
	ctx := parent
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.TicketID != "" {
		ctx = logger.ContextWithTicketID(ctx, tc.TicketID)
	}
	return ctx
}

// Group runs named tasks on goroutines with panic recovery and waits for
// them on Wait. Tasks outlive the request that started them but not the
// group's parent context.
type Group struct {
	parent context.Context
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewGroup creates a group whose tasks are cancelled with parent
func NewGroup(parent context.Context, log *zap.Logger) *Group {
	if log == nil {
		log = logger.Get()
	}
	return &Group{parent: parent, logger: log}
}

// Go starts fn unless the group is already waiting. ctx only supplies the
// correlation and ticket IDs for fn's context.
//
// Usage:
//
//	tasks.Go(ctx, "persist-ticket", func(ctx context.Context) {
//	    store.Save(ctx, ticket)
//	})
func (g *Group) Go(ctx context.Context, taskName string, fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	tc := CaptureContext(ctx, taskName)
	go func() {
		defer g.wg.Done()
		defer g.recoverWithLogging(tc)

		taskCtx := tc.NewContext(g.parent)
		fn(taskCtx)

		logger.FromContext(taskCtx, g.logger).Debug("async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
	return true
}

// Wait refuses new tasks and blocks until running ones return
func (g *Group) Wait() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}

// recoverWithLogging recovers from panics and logs them with context
func (g *Group) recoverWithLogging(tc TaskContext) {
	if r := recover(); r != nil {
		logger.FromContext(tc.NewContext(context.Background()), g.logger).Error("async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
