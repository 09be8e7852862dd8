package retry

import (
	"fmt"
	"math"
	"time"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
)

// Policy is an immutable retry configuration. Build it with NewPolicy; the
// zero value is not usable. A Policy may be shared freely between goroutines.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	multiplier  float64
	maxDelay    time.Duration
	jitter      bool
}

// NewPolicy validates and returns a Policy.
//
//   - maxAttempts is the total number of calls, first call included (≥ 1)
//   - baseDelay is the wait before the second attempt (> 0)
//   - multiplier scales the wait after every retry (≥ 1)
//   - maxDelay caps the wait (≥ baseDelay)
//   - jitter draws the realized wait uniformly from [0, computed wait]
func NewPolicy(maxAttempts int, baseDelay time.Duration, multiplier float64, maxDelay time.Duration, jitter bool) (Policy, error) {
	switch {
	case maxAttempts < 1:
		return Policy{}, failure.InvalidInput(fmt.Sprintf("max attempts must be at least 1, got %d", maxAttempts))
	case baseDelay <= 0:
		return Policy{}, failure.InvalidInput(fmt.Sprintf("base delay must be positive, got %s", baseDelay))
	case multiplier < 1 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0):
		return Policy{}, failure.InvalidInput(fmt.Sprintf("backoff multiplier must be >= 1, got %v", multiplier))
	case maxDelay < baseDelay:
		return Policy{}, failure.InvalidInput(fmt.Sprintf("max delay %s is below base delay %s", maxDelay, baseDelay))
	}
	return Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		multiplier:  multiplier,
		maxDelay:    maxDelay,
		jitter:      jitter,
	}, nil
}

// MustPolicy is NewPolicy that panics on invalid input. Intended for
// package-level policies built from constants.
func MustPolicy(maxAttempts int, baseDelay time.Duration, multiplier float64, maxDelay time.Duration, jitter bool) Policy {
	p, err := NewPolicy(maxAttempts, baseDelay, multiplier, maxDelay, jitter)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPolicy matches the SDK defaults: 3 retries after the first call,
// 1s initial delay doubling up to 30s, no jitter.
func DefaultPolicy() Policy {
	return MustPolicy(4, time.Second, 2, 30*time.Second, false)
}

func (p Policy) MaxAttempts() int { return p.maxAttempts }

func (p Policy) BaseDelay() time.Duration { return p.baseDelay }

func (p Policy) Multiplier() float64 { return p.multiplier }

func (p Policy) MaxDelay() time.Duration { return p.maxDelay }

func (p Policy) Jitter() bool { return p.jitter }

// valid reports whether p came from NewPolicy rather than being a zero value.
func (p Policy) valid() bool { return p.maxAttempts >= 1 }

// Delay returns the computed wait before attempt n, before jitter:
// min(base * multiplier^(n-2), maxDelay). It is zero for n ≤ 1.
func (p Policy) Delay(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	d := float64(p.baseDelay) * math.Pow(p.multiplier, float64(n-2))
	if d >= float64(p.maxDelay) || math.IsInf(d, 0) {
		return p.maxDelay
	}
	return time.Duration(d)
}

// String renders the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("attempts=%d base=%s x%.2g max=%s jitter=%t",
		p.maxAttempts, p.baseDelay, p.multiplier, p.maxDelay, p.jitter)
}
