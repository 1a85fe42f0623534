package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := New(3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.GetState() != StateClosed {
			t.Fatalf("opened after %d failures", i+1)
		}
	}
	cb.RecordFailure()

	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after threshold, got %s", cb.GetState())
	}
	if cb.AllowRequest() {
		t.Error("expected requests rejected while open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(3, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed, non-consecutive failures must not trip, got %s", cb.GetState())
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.AllowRequest() {
		t.Fatal("expected rejection while open")
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.AllowRequest() {
		t.Fatal("expected probe allowed after timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.GetState())
	}

	cb.RecordSuccess()
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected half-open until success threshold, got %s", cb.GetState())
	}
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("expected closed after success threshold, got %s", cb.GetState())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !cb.AllowRequest() {
		t.Fatal("expected probe allowed")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected reopen on half-open failure, got %s", cb.GetState())
	}
	if cb.AllowRequest() {
		t.Error("expected rejection immediately after reopen")
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	cb := New(1, 1, 10*time.Millisecond)

	type change struct{ from, to State }
	var changes []change
	cb.OnStateChange(func(from, to State) {
		changes = append(changes, change{from, to})
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.AllowRequest()
	cb.RecordSuccess()

	want := []change{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(changes) != len(want) {
		t.Fatalf("unexpected transitions %v", changes)
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("transition %d: got %v, want %v", i, changes[i], w)
		}
	}
}
