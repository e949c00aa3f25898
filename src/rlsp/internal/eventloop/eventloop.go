// Package eventloop runs all session state transitions on one goroutine.
// Process exits, timers and remote command completions arrive on arbitrary goroutines
// and are posted here, so state owned by the loop needs no locking.
package eventloop

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrClosed is returned by Do once the loop has stopped.
var ErrClosed = errors.New("event loop closed")

// Module provides the Scheduler bound to the application lifecycle.
var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(func(l *Loop) Scheduler { return l }),
)

// Scheduler serializes tasks.
type Scheduler interface {
	// Post enqueues task. It never blocks.
	Post(task func())
	// Do runs task and waits for it to finish. It must not be called from a task.
	Do(ctx context.Context, task func()) error
}

// Loop is a Scheduler backed by a single goroutine and an unbounded FIFO queue.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	started bool
	done    chan struct{}
	logger  *zap.SugaredLogger
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New returns a Loop that starts and stops with the application.
func New(p Params) *Loop {
	l := NewLoop(p.Logger)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			l.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return l.Stop(ctx)
		},
	})
	return l
}

// NewLoop returns a Loop that is not yet running.
func NewLoop(logger *zap.SugaredLogger) *Loop {
	l := &Loop{
		done:   make(chan struct{}),
		logger: logger.Named("eventloop"),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start begins processing tasks. Calling it more than once has no effect.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	l.started = true
	go l.run()
}

// Stop rejects new tasks, drains the queue and waits for the loop goroutine to exit.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	started := l.started
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post implements Scheduler.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.logger.Debug("dropping task posted after close")
		return
	}
	l.queue = append(l.queue, task)
	l.cond.Signal()
}

// Do implements Scheduler.
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, func() {
		defer close(finished)
		task()
	})
	l.cond.Signal()
	l.mu.Unlock()

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(task)
	}
}

// runTask keeps the loop alive when a task panics.
func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorw("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
