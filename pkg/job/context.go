package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ShutdownHookTimeout bounds how long Shutdown waits for hooks.
var ShutdownHookTimeout = 5 * time.Second

// NewJobContext returns a context that is cancelled by Shutdown, by the
// parent, or after timeout when it is positive.
func NewJobContext(parent context.Context, timeout time.Duration) *JobContext {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &JobContext{Ctx: ctx, cancel: cancel}
}

// Shutdown runs every hook once, concurrently, then cancels the context.
// Later calls are no-ops.
func (jc *JobContext) Shutdown(reason string) {
	jc.mu.Lock()
	if jc.shutdown {
		jc.mu.Unlock()
		return
	}
	jc.shutdown = true
	jc.reason = reason
	hooks := jc.shutdownHooks
	jc.shutdownHooks = nil
	jc.mu.Unlock()

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("shutdown hook panicked", slog.Any("panic", r))
				}
			}()
			h(reason)
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownHookTimeout):
		slog.Warn("shutdown hooks timed out", slog.Duration("timeout", ShutdownHookTimeout))
	}

	jc.cancel()
}

// OnShutdown registers a hook. If the job already shut down the hook runs
// immediately in its own goroutine.
func (jc *JobContext) OnShutdown(hook func(reason string)) {
	jc.mu.Lock()
	defer jc.mu.Unlock()

	if jc.shutdown {
		reason := jc.reason
		go hook(reason)
		return
	}
	jc.shutdownHooks = append(jc.shutdownHooks, hook)
}

// Reason returns the reason passed to Shutdown, or "" while running.
func (jc *JobContext) Reason() string {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.reason
}

func (jc *JobContext) IsShutdown() bool {
	select {
	case <-jc.Ctx.Done():
		return true
	default:
		return false
	}
}

func (jc *JobContext) Done() <-chan struct{} {
	return jc.Ctx.Done()
}

func (jc *JobContext) Err() error {
	return jc.Ctx.Err()
}

func generateJobID() string {
	return "job_" + uuid.NewString()
}
