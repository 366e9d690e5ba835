package app

import (
	"testing"
	"time"
)

func TestAttemptLimiter(t *testing.T) {
	rl := NewAttemptLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow("s1") {
			t.Fatalf("Allow() attempt %d should pass under the limit", i+1)
		}
	}
	if rl.Allow("s1") {
		t.Fatal("Allow() over the limit should be denied")
	}

	// independent sessions have independent budgets
	if !rl.Allow("s2") {
		t.Fatal("Allow() for a fresh session should pass")
	}
}

func TestAttemptLimiterWindowExpiry(t *testing.T) {
	rl := NewAttemptLimiter(1, 10*time.Millisecond)

	if !rl.Allow("s1") {
		t.Fatal("first attempt should pass")
	}
	if rl.Allow("s1") {
		t.Fatal("second attempt inside the window should be denied")
	}

	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("s1") {
		t.Fatal("attempt after the window should pass again")
	}
}

func TestAttemptLimiterForget(t *testing.T) {
	rl := NewAttemptLimiter(1, time.Hour)
	rl.Allow("s1")
	rl.Forget("s1")

	if !rl.Allow("s1") {
		t.Fatal("Allow() after Forget() should pass")
	}
}
