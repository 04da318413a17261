package retry

import (
	"log/slog"
	"sync"
	"time"
)

// State is the position of a circuit breaker's state machine.
type State int

const (
	// Closed is the normal state: calls flow through.
	Closed State = iota
	// Open rejects every call until the recovery timeout elapses.
	Open
	// HalfOpen admits a limited number of probe calls to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker gates calls to one upstream endpoint so a failing endpoint is not
// hammered while it recovers. One Breaker guards one circuit key; instances
// are created by the Executor and shared by every worker using that key.
//
// All methods are safe for concurrent use and none of them blocks.
type Breaker struct {
	name   string
	policy Policy

	mu                sync.Mutex
	state             State
	failures          int
	lastFailure       time.Time
	halfOpenCalls     int // probes issued since entering half-open
	halfOpenSuccesses int // probes that came back successful

	now func() time.Time
}

// BreakerStatus is a point-in-time copy of one breaker's state.
type BreakerStatus struct {
	State         State
	Failures      int
	LastFailure   time.Time
	HalfOpenCalls int
}

func newBreaker(name string, policy Policy) *Breaker {
	return &Breaker{name: name, policy: policy, now: time.Now}
}

// Allow reports whether a call may proceed right now. In the open state it
// also performs the timed transition to half-open once the recovery timeout
// has elapsed since the last failure; a granted half-open call consumes one
// probe slot.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recoverLocked()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenCalls < b.policy.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful call. In the closed state it works the
// failure count back toward zero; in half-open it counts the probe toward
// closing the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.policy.HalfOpenMaxCalls {
			slog.Info("retry: circuit closed", "circuit", b.name)
			b.state = Closed
			b.failures = 0
		}
	case Closed:
		if b.failures > 0 {
			b.failures--
		}
	}
}

// RecordFailure notes a failed call. Reaching the failure threshold opens the
// circuit; any failure while half-open reopens it and restarts the recovery
// clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case HalfOpen:
		slog.Warn("retry: circuit reopened by failed probe", "circuit", b.name)
		b.state = Open
	case Closed:
		if b.failures >= b.policy.FailureThreshold {
			slog.Warn("retry: circuit opened", "circuit", b.name, "failures", b.failures)
			b.state = Open
		}
	}
}

// Status returns a copy of the breaker's current state. Like Allow it applies
// the open→half-open recovery check, so state reads taken after the timeout
// report half_open without waiting for the next call.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recoverLocked()

	return BreakerStatus{
		State:         b.state,
		Failures:      b.failures,
		LastFailure:   b.lastFailure,
		HalfOpenCalls: b.halfOpenCalls,
	}
}

// recoverLocked moves an open breaker to half-open once the recovery timeout
// has elapsed since the last failure. Callers must hold b.mu.
func (b *Breaker) recoverLocked() {
	if b.state != Open {
		return
	}
	if b.now().Sub(b.lastFailure) >= b.policy.RecoveryTimeout {
		slog.Info("retry: circuit half-open", "circuit", b.name)
		b.state = HalfOpen
		b.halfOpenCalls = 0
		b.halfOpenSuccesses = 0
	}
}
