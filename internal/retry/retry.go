package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"
)

// Default policy values.
const (
	defaultMaxAttempts      = 3
	defaultBaseDelay        = time.Second
	defaultMaxDelay         = 60 * time.Second
	defaultExpBase          = 2.0
	defaultMultiplier       = 1.0
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 60 * time.Second
	defaultHalfOpenMaxCalls = 3

	// jitterFraction is the relative spread applied to computed delays.
	jitterFraction = 0.1
)

// ErrCircuitOpen is carried by an Outcome whose call was rejected by an open
// circuit breaker without being attempted.
var ErrCircuitOpen = errors.New("retry: circuit open")

// Policy controls retry and circuit breaker behavior. A Policy is fixed when
// handed to New and shared by every operation of that executor.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ExpBase     float64
	Jitter      bool
	Multiplier  float64

	// Circuit breaker settings, applied per circuit key.
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
}

// DefaultPolicy returns the standard production policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      defaultMaxAttempts,
		BaseDelay:        defaultBaseDelay,
		MaxDelay:         defaultMaxDelay,
		ExpBase:          defaultExpBase,
		Jitter:           true,
		Multiplier:       defaultMultiplier,
		FailureThreshold: defaultFailureThreshold,
		RecoveryTimeout:  defaultRecoveryTimeout,
		HalfOpenMaxCalls: defaultHalfOpenMaxCalls,
	}
}

// Op is one fallible unit of work executed under retry. Implementations must
// honor ctx cancellation.
type Op func(ctx context.Context) (any, error)

// Attempt records one try of an operation.
type Attempt struct {
	Number int           // 1-based
	Delay  time.Duration // backoff slept before this attempt; zero for the first
	Err    error         // nil when the attempt succeeded
	At     time.Time
}

// Outcome is the terminal result of Do. Do never fails with an error of its
// own: success and failure are both reported here.
type Outcome struct {
	OK          bool
	Value       any
	Err         error
	Attempts    []Attempt
	Duration    time.Duration
	CircuitOpen bool // rejected by an open breaker rather than failed
}

// Executor runs operations with bounded retries, exponential backoff and a
// circuit breaker per circuit key. The zero value is not usable; construct
// with New.
type Executor struct {
	policy Policy

	mu       sync.RWMutex
	breakers map[string]*Breaker

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New returns an Executor enforcing policy.
func New(policy Policy) *Executor {
	return &Executor{
		policy:   policy,
		breakers: make(map[string]*Breaker),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Do runs op under the executor's retry policy. A non-empty circuitKey guards
// the operation with that key's breaker, created on first use. The breaker is
// consulted before every attempt, so a circuit that opens mid-sequence stops
// the remaining attempts without invoking op again.
func (e *Executor) Do(ctx context.Context, circuitKey string, op Op) Outcome {
	start := e.now()

	var br *Breaker
	if circuitKey != "" {
		br = e.breaker(circuitKey)
	}

	var attempts []Attempt
	var delay time.Duration // backoff slept before the upcoming attempt

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if br != nil && !br.Allow() {
			slog.Warn("retry: circuit open, rejecting call",
				"circuit", circuitKey, "attempt", attempt)
			return Outcome{
				Err:         fmt.Errorf("%w: %s", ErrCircuitOpen, circuitKey),
				Attempts:    attempts,
				Duration:    e.now().Sub(start),
				CircuitOpen: true,
			}
		}

		value, err := op(ctx)
		if err == nil {
			if br != nil {
				br.RecordSuccess()
			}
			attempts = append(attempts, Attempt{Number: attempt, Delay: delay, At: e.now()})
			return Outcome{
				OK:       true,
				Value:    value,
				Attempts: attempts,
				Duration: e.now().Sub(start),
			}
		}

		if br != nil {
			br.RecordFailure()
		}
		attempts = append(attempts, Attempt{Number: attempt, Delay: delay, Err: err, At: e.now()})

		if attempt == e.policy.MaxAttempts || !retryable(err) {
			return Outcome{
				Err:      err,
				Attempts: attempts,
				Duration: e.now().Sub(start),
			}
		}

		next := e.backoff(attempt, err)
		slog.Warn("retry: attempt failed",
			"circuit", circuitKey, "attempt", attempt, "next_delay", next, "err", err)
		if serr := e.sleep(ctx, next); serr != nil {
			// Cancelled during backoff; the last attempt's error stands.
			return Outcome{
				Err:      err,
				Attempts: attempts,
				Duration: e.now().Sub(start),
			}
		}
		delay = next
	}

	// Unreachable: the loop always returns.
	return Outcome{Err: errors.New("retry: attempts exhausted"), Attempts: attempts}
}

// BreakerStatus reports the state of every breaker the executor has created,
// keyed by circuit key.
func (e *Executor) BreakerStatus() map[string]BreakerStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]BreakerStatus, len(e.breakers))
	for name, b := range e.breakers {
		out[name] = b.Status()
	}
	return out
}

// breaker returns the circuit breaker for key, creating it on first use.
func (e *Executor) breaker(key string) *Breaker {
	e.mu.RLock()
	b, ok := e.breakers[key]
	e.mu.RUnlock()
	if ok {
		return b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[key]; ok {
		return b
	}
	b = newBreaker(key, e.policy)
	b.now = e.now
	e.breakers[key] = b
	return b
}

// backoff computes the delay to sleep after the given failed attempt. The
// base is the policy delay unless err carries a positive retry-after hint.
func (e *Executor) backoff(attempt int, err error) time.Duration {
	base := e.policy.BaseDelay
	if hint, ok := retryAfter(err); ok {
		base = hint
	}

	d := float64(base) * math.Pow(e.policy.ExpBase, float64(attempt-1)) * e.policy.Multiplier
	if limit := float64(e.policy.MaxDelay); d > limit {
		d = limit
	}
	if e.policy.Jitter {
		d += d * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // not crypto
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// retryable reports whether err is worth retrying. Errors that implement
// Retryable() decide for themselves; otherwise network and deadline errors
// default to retryable and everything else does not.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// retryAfter extracts a server-suggested delay from err, if it carries one.
func retryAfter(err error) (time.Duration, bool) {
	var h interface{ RetryAfter() time.Duration }
	if errors.As(err, &h) {
		if d := h.RetryAfter(); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
