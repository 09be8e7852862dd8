// Package retry runs outbound calls with a per-attempt timeout, exponential
// backoff and a fixed error classification.
//
// # Usage
//
//	policy, err := retry.NewPolicy(4, time.Second, 2, 30*time.Second, true)
//	if err != nil {
//		return err
//	}
//
//	models, err := retry.Do(ctx, policy, 30*time.Second,
//		func(ctx context.Context) ([]string, error) {
//			return registry.Models(ctx)
//		},
//		retry.WithOperation("get_models"),
//	)
//
// # Timing
//
// The first attempt starts immediately. Before attempt n (n > 1) the loop
// waits
//
//	min(base * multiplier^(n-2), maxDelay)
//
// With jitter enabled the realized wait is drawn uniformly from
// [0, computed wait], which keeps independent callers from retrying in
// lockstep.
//
// # Classification
//
// Only transient failures are retried: connection refused, DNS failures,
// socket and per-attempt timeouts, and HTTP 502/503/504. Invalid responses,
// HTTP 400/401/403 and anything unrecognised fail fast. See Classify.
//
// # States
//
//	INIT -> ATTEMPT(1..max)
//	ATTEMPT ok                          -> DONE
//	ATTEMPT terminal                    -> FAILED     (original error)
//	ATTEMPT retryable, attempts left    -> WAIT -> ATTEMPT(n+1)
//	ATTEMPT retryable, none left        -> EXHAUSTED  (failure.KindRetryExhausted)
//
// Cancelling the caller's context leaves any state immediately with a
// failure.KindTimeout error; the interrupted attempt is not counted.
//
// # Observability
//
// Every attempt emits one Event (call ID, attempt, chosen delay, class,
// elapsed time) to the configured observers. By default events are logged
// through the global zap logger.
//
// # Cooperative callers
//
// Go runs the same loop on its own goroutine and delivers a single Result on
// a channel, so a caller can select on it together with other work.
package retry
