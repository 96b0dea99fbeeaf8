package control

import (
	"testing"
	"time"
)

func TestCircuitBreaker_StateTransitions(t *testing.T) {
	c := NewCircuitBreaker(2, 100*time.Millisecond)
	now := time.Now()

	if c.State() != CircuitClosed {
		t.Fatalf("expected closed, got %s", c.State())
	}

	c.RecordFailure("transport_api", now)
	if c.State() != CircuitClosed {
		t.Fatalf("expected closed after first failure, got %s", c.State())
	}

	c.RecordFailure("transport_api", now)
	if c.State() != CircuitOpen {
		t.Fatalf("expected open after threshold failures, got %s", c.State())
	}
	if c.OpenedClass() != "transport_api" {
		t.Fatalf("expected opened class transport_api, got %s", c.OpenedClass())
	}

	if c.Allow(now.Add(10 * time.Millisecond)) {
		t.Fatal("expected deny while cooldown not elapsed")
	}
	if !c.Allow(now.Add(120 * time.Millisecond)) {
		t.Fatal("expected allow after cooldown")
	}
	if c.State() != CircuitHalfOpen {
		t.Fatalf("expected half_open, got %s", c.State())
	}

	c.RecordSuccess()
	if c.State() != CircuitClosed {
		t.Fatalf("expected closed after probe success, got %s", c.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	c := NewCircuitBreaker(1, 50*time.Millisecond)
	now := time.Now()

	c.RecordFailure("transport_api", now)
	if c.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", c.State())
	}
	if !c.Allow(now.Add(60 * time.Millisecond)) {
		t.Fatal("expected probe after cooldown")
	}
	c.RecordFailure("transport_api", now.Add(61*time.Millisecond))
	if c.State() != CircuitOpen {
		t.Fatalf("expected reopen after failed probe, got %s", c.State())
	}
}

func TestCircuitBreaker_FailureClassesCountSeparately(t *testing.T) {
	c := NewCircuitBreaker(2, time.Second)
	now := time.Now()

	c.RecordFailure("transport_api", now)
	c.RecordFailure("unknown", now)
	if c.State() != CircuitClosed {
		t.Fatalf("expected closed with mixed-class failures, got %s", c.State())
	}
}
