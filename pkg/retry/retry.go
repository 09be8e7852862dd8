package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
)

// Operation performs one attempt. It must honour ctx, which carries the
// per-attempt deadline.
type Operation[T any] func(ctx context.Context) (T, error)

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter
// case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Result is delivered by Go.
type Result[T any] struct {
	Value T
	Err   error
}

// Option customises a single call.
type Option func(*options)

type options struct {
	op        string
	observers []Observer
	sleep     Sleeper
	rand      func() float64
	classify  Classifier
	noLog     bool
}

// WithOperation names the call in events and errors.
func WithOperation(name string) Option {
	return func(o *options) { o.op = name }
}

// WithObserver adds observers next to the default log observer.
func WithObserver(obs ...Observer) Option {
	return func(o *options) {
		for _, ob := range obs {
			if ob != nil {
				o.observers = append(o.observers, ob)
			}
		}
	}
}

// WithoutLogging drops the default log observer.
func WithoutLogging() Option {
	return func(o *options) { o.noLog = true }
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) Option {
	return func(o *options) { o.rand = f }
}

// WithClassifier replaces Classify.
func WithClassifier(c Classifier) Option {
	return func(o *options) { o.classify = c }
}

func newOptions(opts []Option) *options {
	o := &options{
		op:       "call",
		sleep:    sleepContext,
		rand:     rand.Float64,
		classify: Classify,
	}
	for _, opt := range opts {
		opt(o)
	}
	if !o.noLog {
		o.observers = append([]Observer{LogObserver(nil)}, o.observers...)
	}
	return o
}

// Do runs op under p, giving every attempt at most timeout (0 disables the
// per-attempt deadline). It returns op's value on the first success.
//
// A terminal failure is returned at once, wrapped in a *failure.AttemptError
// that still matches the original with errors.Is/As. When every attempt
// fails with a retryable error, Do returns a failure.KindRetryExhausted error
// holding the attempt count, the last failure and the full history. When ctx
// ends during an attempt or a wait, Do stops without using another attempt
// and returns a failure.KindTimeout error wrapping ctx.Err().
func Do[T any](ctx context.Context, p Policy, timeout time.Duration, op Operation[T], opts ...Option) (T, error) {
	return run(ctx, p, timeout, op, newOptions(opts))
}

// Go is the non-blocking form of Do. The call runs on its own goroutine and
// the single Result is delivered on the returned channel, which is then
// closed. Classification and backoff are those of Do.
func Go[T any](ctx context.Context, p Policy, timeout time.Duration, op Operation[T], opts ...Option) <-chan Result[T] {
	o := newOptions(opts)
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := run(ctx, p, timeout, op, o)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

func run[T any](ctx context.Context, p Policy, timeout time.Duration, op Operation[T], o *options) (T, error) {
	var zero T
	if !p.valid() {
		return zero, failure.InvalidInput("retry policy is not initialised")
	}
	if op == nil {
		return zero, failure.InvalidInput("nil operation")
	}

	callID := uuid.NewString()
	start := time.Now()
	history := make([]error, 0, p.maxAttempts)

	emit := func(out Outcome) {
		ev := Event{Outcome: out, CallID: callID, Op: o.op, MaxAttempts: p.maxAttempts}
		for _, ob := range o.observers {
			ob.ObserveAttempt(ctx, ev)
		}
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, canceled(ctx, o.op, start, lastOf(history))
		}

		began := time.Now()
		v, err := attemptOnce(ctx, timeout, o.op, op)
		elapsed := time.Since(began)

		if err == nil {
			emit(Outcome{Attempt: attempt, Class: Succeeded, Elapsed: elapsed})
			return v, nil
		}

		wrapped := failure.WithAttempt(err, attempt, elapsed)

		// The caller gave up: this attempt does not count against the policy.
		if ctx.Err() != nil {
			emit(Outcome{Attempt: attempt, Class: Terminal, Err: wrapped, Elapsed: elapsed})
			return zero, canceled(ctx, o.op, start, wrapped)
		}

		class := o.classify(err)
		history = append(history, wrapped)

		if class != Retryable {
			emit(Outcome{Attempt: attempt, Class: Terminal, Err: wrapped, Elapsed: elapsed})
			return zero, wrapped
		}
		if attempt >= p.maxAttempts {
			emit(Outcome{Attempt: attempt, Class: Retryable, Err: wrapped, Elapsed: elapsed})
			exhausted := failure.Exhausted(attempt, wrapped, history)
			exhausted.Op = o.op
			return zero, exhausted
		}

		delay := p.Delay(attempt + 1)
		if p.jitter {
			delay = time.Duration(o.rand() * float64(delay))
		}
		emit(Outcome{Attempt: attempt, Class: Retryable, Err: wrapped, Delay: delay, Elapsed: elapsed})

		if err := o.sleep(ctx, delay); err != nil {
			return zero, canceled(ctx, o.op, start, wrapped)
		}
	}
}

type attemptResult[T any] struct {
	v   T
	err error
}

// attemptOnce runs op with the per-attempt deadline. op runs on its own
// goroutine so that an operation ignoring its context cannot hold the caller
// past the deadline; its late result is dropped.
func attemptOnce[T any](ctx context.Context, timeout time.Duration, name string, op Operation[T]) (T, error) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		v, err := op(actx)
		done <- attemptResult[T]{v, err}
	}()

	var res attemptResult[T]
	select {
	case res = <-done:
	case <-actx.Done():
		res.err = actx.Err()
	}

	if res.err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) &&
		!failure.IsKind(res.err, failure.KindTimeout) {
		res.err = failure.Timeout(name, timeout, res.err)
	}
	return res.v, res.err
}

// canceled builds the error returned when the caller's context ends.
func canceled(ctx context.Context, op string, start time.Time, last error) error {
	var budget time.Duration
	if dl, ok := ctx.Deadline(); ok {
		budget = dl.Sub(start)
	}
	cause := ctx.Err()
	if last != nil {
		cause = errors.Join(cause, last)
	}
	return failure.Timeout(op, budget, cause)
}

func lastOf(history []error) error {
	if len(history) == 0 {
		return nil
	}
	return history[len(history)-1]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
