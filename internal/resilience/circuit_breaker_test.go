package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)
	if cb.GetState() != StateClosed {
		t.Errorf("expected initial state closed, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)
	failErr := errors.New("fail")

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return failErr })
	}

	if cb.GetState() != StateOpen {
		t.Errorf("expected open state after 3 failures, got %v", cb.GetState())
	}

	// Requests fail fast while open.
	err := cb.Call(func() error {
		t.Fatal("function must not be called while circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Second)
	failErr := errors.New("fail")

	_ = cb.Call(func() error { return failErr })
	_ = cb.Call(func() error { return failErr })
	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return failErr })
	_ = cb.Call(func() error { return failErr })

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed state, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 20*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("fail") })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.GetState())
	}

	time.Sleep(30 * time.Millisecond)

	// The next request is allowed through as a probe.
	called := false
	_ = cb.Call(func() error {
		called = true
		return nil
	})
	if !called {
		t.Error("expected probe request after reset timeout")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("fail") })
	time.Sleep(20 * time.Millisecond)

	_ = cb.Call(func() error { return errors.New("fail again") })
	if cb.GetState() != StateOpen {
		t.Errorf("expected reopened circuit, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_ClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("fail") })
	time.Sleep(20 * time.Millisecond)

	// Enough consecutive successes in half-open close the circuit.
	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed state after recovery, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)

	_ = cb.Call(func() error { return errors.New("fail") })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.GetState())
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("expected closed state after reset, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker("test", 5, time.Second)

	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return errors.New("fail") })

	_, requests, failures, rate := cb.GetStats()
	if requests != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
	if rate != 50.0 {
		t.Errorf("expected 50%% failure rate, got %f", rate)
	}
}
