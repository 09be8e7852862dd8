package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Outcome is the result of a single attempt.
type Outcome struct {
	// Attempt is the 1-based attempt index.
	Attempt int
	Class   Class
	// Err is the attempt's failure, wrapped with attempt context; nil on success.
	Err error
	// Delay is the wait chosen before the next attempt; zero when no further
	// attempt follows.
	Delay   time.Duration
	Elapsed time.Duration
}

// Event is emitted once per attempt.
type Event struct {
	Outcome
	// CallID correlates the attempts of one call.
	CallID      string
	Op          string
	MaxAttempts int
}

// Exhausted reports whether this event closes a call that ran out of attempts.
func (e Event) Exhausted() bool {
	return e.Class == Retryable && e.Delay == 0 && e.Attempt >= e.MaxAttempts
}

// Observer receives attempt events. Implementations must be safe for
// concurrent use; they are invoked synchronously from the calling goroutine.
type Observer interface {
	ObserveAttempt(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) ObserveAttempt(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// LogObserver logs attempt events with l. A nil logger means zap.L() at the
// time of each event, so zap.ReplaceGlobals is honoured.
func LogObserver(l *zap.Logger) Observer {
	return ObserverFunc(func(_ context.Context, ev Event) {
		logger := l
		if logger == nil {
			logger = zap.L()
		}
		fields := []zap.Field{
			zap.String("call_id", ev.CallID),
			zap.String("op", ev.Op),
			zap.Int("attempt", ev.Attempt),
			zap.Int("max_attempts", ev.MaxAttempts),
			zap.Stringer("class", ev.Class),
			zap.Duration("elapsed", ev.Elapsed),
		}
		switch {
		case ev.Err == nil:
			logger.Debug("call succeeded", fields...)
		case ev.Exhausted():
			logger.Error("all attempts failed", append(fields, zap.Error(ev.Err))...)
		case ev.Class == Retryable:
			logger.Warn("attempt failed, retrying", append(fields, zap.Duration("delay", ev.Delay), zap.Error(ev.Err))...)
		default:
			logger.Debug("non-retryable error", append(fields, zap.Error(ev.Err))...)
		}
	})
}
