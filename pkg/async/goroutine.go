package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/inkwell/pkg/observability"
)

// SafeGo executes fn in a goroutine with:
// - Detachment from the parent's cancellation (values such as the logger are kept)
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` for fire-and-forget work started from
// a request handler; the request context is cancelled as soon as the
// response is written.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "api key touch", func(ctx context.Context) error {
//	    return store.TouchAPIKey(ctx, keyID, time.Now())
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go run(parentCtx, timeout, taskName, fn)
}

func run(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
	defer cancel()

	logger := observability.FromContext(parentCtx).WithField("task", taskName)
	defer func() {
		if r := recover(); r != nil {
			observability.LogPanic(logger, taskName, r)
		}
	}()

	if err := fn(ctx); err != nil {
		logger.WithError(err).Warn("Background task failed")
	}
}

// Tracker runs background tasks like SafeGo but remembers them so that
// shutdown can wait for in-flight work.
type Tracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Go starts fn in the background. It returns false when the tracker has
// been closed and the task was not started.
func (t *Tracker) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		run(parentCtx, timeout, taskName, fn)
	}()
	return true
}

// Wait blocks until every started task has finished or ctx is done.
// Tasks started after Close are rejected.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}

// Close stops accepting new tasks and waits for running ones
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.Wait(ctx)
}
