package clock

import (
	"testing"
	"time"
)

// TestNowNondecreasing verifies the clock never moves backwards across
// consecutive reads.
func TestNowNondecreasing(t *testing.T) {
	prev := Now()
	for i := 0; i < 10000; i++ {
		cur := Now()
		if cur < prev {
			t.Fatalf("clock went backwards: %d after %d", cur, prev)
		}
		prev = cur
	}
}

// TestNowAdvances verifies the clock tracks real elapsed time at least
// roughly.
func TestNowAdvances(t *testing.T) {
	start := Now()
	time.Sleep(10 * time.Millisecond)
	elapsed := Now() - start

	if elapsed < int64(5*time.Millisecond) {
		t.Errorf("slept 10ms but clock advanced only %dns", elapsed)
	}
}
