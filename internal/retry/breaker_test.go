package retry

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testPolicy() Policy {
	p := DefaultPolicy()
	p.FailureThreshold = 3
	p.RecoveryTimeout = 30 * time.Second
	p.HalfOpenMaxCalls = 2
	return p
}

func newTestBreaker(p Policy) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	b := newBreaker("test", p)
	b.now = clk.now
	return b, clk
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(testPolicy())

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if !b.Allow() {
		t.Fatal("breaker rejected call below failure threshold")
	}
	if got := b.Status().State; got != Closed {
		t.Fatalf("state = %v, want %v", got, Closed)
	}

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker allowed call after reaching failure threshold")
	}
	if got := b.Status().State; got != Open {
		t.Fatalf("state = %v, want %v", got, Open)
	}
}

func TestBreakerSuccessUnwindsFailures(t *testing.T) {
	b, _ := newTestBreaker(testPolicy())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if got := b.Status().Failures; got != 1 {
		t.Fatalf("failures = %d, want 1", got)
	}

	// The count never goes below zero.
	b.RecordSuccess()
	b.RecordSuccess()
	if got := b.Status().Failures; got != 0 {
		t.Fatalf("failures = %d, want 0", got)
	}

	// Two more failures only bring the count back to two; the circuit
	// stays closed.
	b.RecordFailure()
	b.RecordFailure()
	if got := b.Status().State; got != Closed {
		t.Fatalf("state = %v, want %v", got, Closed)
	}
}

func TestBreakerRecoversToHalfOpen(t *testing.T) {
	p := testPolicy()
	b, clk := newTestBreaker(p)

	for i := 0; i < p.FailureThreshold; i++ {
		b.RecordFailure()
	}
	if b.Allow() {
		t.Fatal("open breaker allowed a call before the recovery timeout")
	}

	clk.advance(p.RecoveryTimeout - time.Second)
	if b.Allow() {
		t.Fatal("open breaker allowed a call one second early")
	}

	clk.advance(time.Second)
	if !b.Allow() {
		t.Fatal("breaker rejected the first probe after the recovery timeout")
	}
	if got := b.Status().State; got != HalfOpen {
		t.Fatalf("state = %v, want %v", got, HalfOpen)
	}
}

func TestBreakerStatusReportsHalfOpenWithoutCalls(t *testing.T) {
	p := testPolicy()
	b, clk := newTestBreaker(p)

	for i := 0; i < p.FailureThreshold; i++ {
		b.RecordFailure()
	}
	clk.advance(p.RecoveryTimeout)

	// A state read alone reflects the recovery, before any call is made.
	if got := b.Status().State; got != HalfOpen {
		t.Fatalf("state = %v, want %v", got, HalfOpen)
	}
	if got := b.Status().HalfOpenCalls; got != 0 {
		t.Fatalf("half-open calls = %d, want 0", got)
	}
}

func TestBreakerHalfOpenProbeCap(t *testing.T) {
	p := testPolicy() // HalfOpenMaxCalls = 2
	b, clk := newTestBreaker(p)

	for i := 0; i < p.FailureThreshold; i++ {
		b.RecordFailure()
	}
	clk.advance(p.RecoveryTimeout)

	if !b.Allow() {
		t.Fatal("first probe rejected")
	}
	if !b.Allow() {
		t.Fatal("second probe rejected")
	}
	if b.Allow() {
		t.Fatal("probe beyond the half-open cap was allowed")
	}
}

func TestBreakerHalfOpenSuccessesClose(t *testing.T) {
	p := testPolicy()
	b, clk := newTestBreaker(p)

	for i := 0; i < p.FailureThreshold; i++ {
		b.RecordFailure()
	}
	clk.advance(p.RecoveryTimeout)

	for i := 0; i < p.HalfOpenMaxCalls; i++ {
		if !b.Allow() {
			t.Fatalf("probe %d rejected", i+1)
		}
		b.RecordSuccess()
	}

	st := b.Status()
	if st.State != Closed {
		t.Fatalf("state = %v, want %v", st.State, Closed)
	}
	if st.Failures != 0 {
		t.Fatalf("failures = %d, want 0 after closing", st.Failures)
	}
	if !b.Allow() {
		t.Fatal("closed breaker rejected a call")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	p := testPolicy()
	b, clk := newTestBreaker(p)

	for i := 0; i < p.FailureThreshold; i++ {
		b.RecordFailure()
	}
	clk.advance(p.RecoveryTimeout)
	if !b.Allow() {
		t.Fatal("probe rejected")
	}

	b.RecordFailure()
	if got := b.Status().State; got != Open {
		t.Fatalf("state = %v, want %v", got, Open)
	}

	// The recovery clock restarts from the probe failure.
	clk.advance(p.RecoveryTimeout - time.Second)
	if b.Allow() {
		t.Fatal("breaker allowed a call before the restarted recovery timeout")
	}
	clk.advance(time.Second)
	if !b.Allow() {
		t.Fatal("breaker rejected a probe after the restarted recovery timeout")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half_open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
