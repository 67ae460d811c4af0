// Package eventloop runs tasks one at a time on a single goroutine.
//
// All state owned by a Loop is touched only from tasks, so it needs no
// locking. Blocking work such as HTTP requests happens on the caller's
// goroutine; the result is applied by posting a task.
//
//	loop := eventloop.New()
//	go loop.Run(ctx)
//	err := loop.Do(ctx, func() { count++ })
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrStopped is returned when posting to a Loop whose Run has returned.
var ErrStopped = errors.New("event loop stopped")

const defaultQueueSize = 64

// Loop is a single-threaded task runner.
type Loop struct {
	clock   Clock
	logger  *slog.Logger
	tasks   chan func()
	stopped chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used by AfterFunc.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithQueueSize sets how many tasks may be queued before Post blocks.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		l.tasks = make(chan func(), n)
	}
}

// New creates a Loop. Run must be called for tasks to execute.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:   RealClock(),
		logger:  slog.Default(),
		tasks:   make(chan func(), defaultQueueSize),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes tasks until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// Post queues fn. It does not wait for fn to run.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stopped:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopped:
		return ErrStopped
	}
}

// Do queues fn and waits until it has run. Calling Do from inside a task
// deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return l.clock.AfterFunc(d, func() {
		if err := l.Post(fn); err != nil {
			l.logger.Debug("dropping timer task", "error", err)
		}
	})
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}
