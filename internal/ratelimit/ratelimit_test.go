package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("event %d should be allowed", i+1)
		}
	}
}

func TestDenyBeyondLimit(t *testing.T) {
	l := New(3, time.Hour)

	for i := 0; i < 3; i++ {
		l.Allow("10.0.0.1")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("4th event should be denied")
	}
}

func TestKeysIndependent(t *testing.T) {
	l := New(2, time.Hour)

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.1")

	if l.Allow("10.0.0.1") {
		t.Fatal("10.0.0.1 should be denied")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("10.0.0.2 should be allowed")
	}
}

func TestWindowExpiry(t *testing.T) {
	l := New(2, 50*time.Millisecond)

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.1")

	if l.Allow("10.0.0.1") {
		t.Fatal("should be denied inside the window")
	}

	time.Sleep(60 * time.Millisecond)

	if !l.Allow("10.0.0.1") {
		t.Fatal("should be allowed once the window passes")
	}
}

func TestIdleKeysSwept(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	l.sweepAt = 4

	l.Allow("a")
	l.Allow("b")
	time.Sleep(20 * time.Millisecond)

	// Enough fresh events to trigger a sweep.
	l.Allow("c")
	l.Allow("d")
	l.Allow("e")
	l.Allow("f")

	l.mu.Lock()
	_, hasA := l.seen["a"]
	_, hasB := l.seen["b"]
	l.mu.Unlock()
	if hasA || hasB {
		t.Fatal("expired keys should have been swept")
	}
}
