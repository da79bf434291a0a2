package coalesce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/zaggino/brackets-flow/internal/log"
)

// DefaultTimeout is used when Invoke gets a non-positive timeout.
const DefaultTimeout = 3 * time.Second

var ErrTimeout = errors.New("invocation timed out")

// TimeoutError is returned to every caller of a slot whose timer fired first.
type TimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s exceeded", ErrTimeout.Error(), e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// InvokeFunc does the actual work for a key. ctx is done once the slot
// gave up on the invocation, when kill on timeout is enabled.
type InvokeFunc[T any] func(ctx context.Context, key string) (T, error)

type Coalescer[T any] struct {
	group          singleflight.Group
	invoke         InvokeFunc[T]
	defaultTimeout time.Duration
	killOnTimeout  bool
}

type Option func(*options)

type options struct {
	defaultTimeout time.Duration
	killOnTimeout  bool
}

// WithDefaultTimeout changes the timeout used for non-positive Invoke timeouts.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithKillOnTimeout controls whether the invocation context is cancelled when
// the timer wins. When disabled the invocation is abandoned and runs to its end.
func WithKillOnTimeout(kill bool) Option {
	return func(o *options) {
		o.killOnTimeout = kill
	}
}

func New[T any](invoke InvokeFunc[T], opts ...Option) *Coalescer[T] {
	if invoke == nil {
		panic("invoke is nil")
	}
	o := options{
		defaultTimeout: DefaultTimeout,
		killOnTimeout:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coalescer[T]{
		invoke:         invoke,
		defaultTimeout: o.defaultTimeout,
		killOnTimeout:  o.killOnTimeout,
	}
}

type outcome[T any] struct {
	v   T
	err error
}

// Invoke returns the outcome of the slot for key, creating the slot when
// there is none. timeout applies to the slot only when this call creates it;
// joiners share the deadline of the slot they join.
func (c *Coalescer[T]) Invoke(ctx context.Context, key string, timeout time.Duration) (T, error) {
	var zero T
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	// the slot outlives any single caller, keep only the values of ctx
	slotCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.settle(slotCtx, key, timeout)
	})

	select {
	case <-ctx.Done():
		slog.DebugContext(ctx, "caller stopped waiting", "key", key, "error", ctx.Err())
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.DebugContext(ctx, "shared in-flight invocation", "key", key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// settle runs a single invocation against the timer. It is executed once
// per slot; its return value is what every caller of the slot gets.
func (c *Coalescer[T]) settle(ctx context.Context, key string, timeout time.Duration) (T, error) {
	var zero T
	ctx = log.ContextAttrs(ctx,
		slog.String("invocation", uuid.NewString()),
		slog.String("key", key),
	)
	ctx, cancel := context.WithCancel(ctx)

	// buffered: a result arriving after the timer must not block the invocation
	done := make(chan outcome[T], 1)
	go func() {
		v, err := c.invoke(ctx, key)
		done <- outcome[T]{v: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	start := time.Now()
	slog.DebugContext(ctx, "invocation started", "timeout", timeout.String())

	select {
	case o := <-done:
		cancel()
		slog.DebugContext(ctx, "invocation settled", "elapsed", time.Since(start).String(), "error", o.err)
		return o.v, o.err
	case <-timer.C:
		slog.WarnContext(ctx, "invocation timed out", "timeout", timeout.String(), "kill", c.killOnTimeout)
		if c.killOnTimeout {
			cancel()
		} else {
			go func() {
				o := <-done
				cancel()
				slog.DebugContext(ctx, "abandoned invocation finished: discarding", "error", o.err)
			}()
		}
		return zero, &TimeoutError{Key: key, Timeout: timeout}
	}
}
