package chat

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
	})

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() in closed state: %v", err)
	}

	cb.Failure()
	cb.Failure()
	if cb.State() != CircuitClosed {
		t.Error("should remain closed below threshold")
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Error("should open after reaching threshold")
	}

	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
	})

	cb.Failure()
	cb.Failure()
	cb.Success()

	cb.Failure()
	cb.Failure()
	if cb.State() != CircuitClosed {
		t.Error("success should have reset the failure count")
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Error("should open after three consecutive failures")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
	})

	cb.Failure()
	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatal("circuit should be open")
	}

	time.Sleep(60 * time.Millisecond)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatal("should be half-open after timeout")
	}

	cb.Success()
	if cb.State() != CircuitHalfOpen {
		t.Error("one success should not close the circuit yet")
	}
	cb.Success()
	if cb.State() != CircuitClosed {
		t.Error("should close after reaching the success threshold")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
	})

	cb.Failure()
	cb.Failure()
	time.Sleep(60 * time.Millisecond)
	_ = cb.Allow()
	if cb.State() != CircuitHalfOpen {
		t.Fatal("should be half-open")
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Error("failure in half-open should immediately reopen")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
	})

	cb.Failure()
	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatal("should be open")
	}

	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Error("should be closed after reset")
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after reset: %v", err)
	}
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 100,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
	})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				switch id % 4 {
				case 0:
					_ = cb.Allow()
				case 1:
					cb.Success()
				case 2:
					cb.Failure()
				case 3:
					_ = cb.State()
				}
			}
		}(i)
	}
	wg.Wait()
}
