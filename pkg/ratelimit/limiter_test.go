package ratelimit

import (
	"testing"
	"time"
)

// TestIsolation establishes property 4: the refusal of principal A never
// causes refusal of principal B with the same budget.
func TestIsolation(t *testing.T) {
	l := New(60, 3, time.Minute, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if _, err := l.Check("A", 1); err != nil {
			t.Fatalf("A request %d should succeed: %v", i, err)
		}
	}
	if _, err := l.Check("A", 1); err == nil {
		t.Fatal("A's 4th request should be refused")
	}
	// B, sharing no state with A, must still get its full budget.
	for i := 0; i < 3; i++ {
		if _, err := l.Check("B", 1); err != nil {
			t.Fatalf("B request %d should succeed: %v", i, err)
		}
	}
}

// TestCapacity establishes property 5: exactly B immediate requests
// succeed and the (B+1)-th fails.
func TestCapacity(t *testing.T) {
	const burst = 5
	l := New(60, burst, time.Minute, time.Minute)
	defer l.Stop()

	for i := 0; i < burst; i++ {
		if _, err := l.Check("p", 1); err != nil {
			t.Fatalf("request %d should succeed within burst: %v", i, err)
		}
	}
	if _, err := l.Check("p", 1); err == nil {
		t.Fatalf("request %d should be refused beyond burst", burst+1)
	}
}

// TestBurstPlusOneScenario mirrors end-to-end scenario S4: a burst of
// burst+1=6 submissions from the same principal within one second with
// burst=5 — the sixth is refused, the other five succeed.
func TestBurstPlusOneScenario(t *testing.T) {
	l := New(300, 5, time.Minute, time.Minute)
	defer l.Stop()

	successes := 0
	var lastErr error
	for i := 0; i < 6; i++ {
		if _, err := l.Check("client-1", 1); err != nil {
			lastErr = err
		} else {
			successes++
		}
	}
	if successes != 5 {
		t.Fatalf("expected 5 successes, got %d", successes)
	}
	if lastErr == nil {
		t.Fatal("expected the 6th request to be refused")
	}
}

func TestReapIdleBuckets(t *testing.T) {
	l := New(60, 5, 10*time.Millisecond, time.Hour)
	defer l.Stop()
	if _, err := l.Check("p", 1); err != nil {
		t.Fatalf("unexpected refusal: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	l.reapIdle()
	if l.Size() != 0 {
		t.Fatalf("expected idle bucket reaped, size=%d", l.Size())
	}
}
