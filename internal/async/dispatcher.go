package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the worker count used when New is given a limit < 1.
const DefaultLimit = 8

// PanicError is delivered to a callback when its operation panicked.
type PanicError struct {
	Op    string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Op, e.Value)
}

// Dispatcher is a bounded pool of goroutines. The zero value is not
// usable; create one with New.
type Dispatcher struct {
	ctx    context.Context
	group  *errgroup.Group
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for callback panics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher running at most limit operations at once.
// ctx is passed to every operation.
func New(ctx context.Context, limit int, opts ...Option) *Dispatcher {
	if limit < 1 {
		limit = DefaultLimit
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)

	d := &Dispatcher{
		ctx:    ctx,
		group:  g,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Context returns the context operations run under.
func (d *Dispatcher) Context() context.Context {
	return d.ctx
}

// Go submits op. cb receives its result exactly once. Go blocks while the
// pool is full.
//
// An error returned by op goes to cb and does not stop other operations. A
// panic in cb itself is recovered and reported by Wait.
func Go[T any](d *Dispatcher, name string, op func(ctx context.Context) (T, error), cb func(T, error)) {
	d.group.Go(func() error {
		res, err := run(d.ctx, name, op)
		return deliver(d.logger, name, cb, res, err)
	})
}

// Wait blocks until every submitted operation and its callback returned.
// The error is the first callback panic, if any.
func (d *Dispatcher) Wait() error {
	return d.group.Wait()
}

func run[T any](ctx context.Context, name string, op func(context.Context) (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = zero
			err = &PanicError{Op: name, Value: r, Stack: debug.Stack()}
		}
	}()
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	return op(ctx)
}

func deliver[T any](logger *slog.Logger, name string, cb func(T, error), res T, err error) (out error) {
	if cb == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked", "op", name, "panic", r)
			out = &PanicError{Op: name + " callback", Value: r, Stack: debug.Stack()}
		}
	}()
	cb(res, err)
	return nil
}
