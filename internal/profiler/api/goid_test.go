package api

import (
	"sync"
	"testing"
)

// TestParseGID tests header parsing against known runtime.Stack formats.
func TestParseGID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{"running", "goroutine 1 [running]:", 1},
		{"large id", "goroutine 6734 [select]:", 6734},
		{"no trailing state", "goroutine 42", 42},
		{"empty", "", 0},
		{"wrong prefix", "go routine 7 [running]:", 0},
		{"no digits", "goroutine x [running]:", 0},
		{"truncated prefix", "gorout", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseGID([]byte(tt.in)); got != tt.want {
				t.Errorf("parseGID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

// TestGoroutineIDStable verifies the id is nonzero and stable within one
// goroutine.
func TestGoroutineIDStable(t *testing.T) {
	first := goroutineID()
	if first == 0 {
		t.Fatal("goroutineID() = 0; runtime.Stack header format changed?")
	}
	for i := 0; i < 100; i++ {
		if got := goroutineID(); got != first {
			t.Fatalf("goroutineID() changed within a goroutine: %d then %d", first, got)
		}
	}
}

// TestGoroutineIDDistinct verifies concurrent goroutines see distinct ids.
func TestGoroutineIDDistinct(t *testing.T) {
	const goroutines = 32
	ids := make([]int64, goroutines)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			ids[g] = goroutineID()
		}(g)
	}
	wg.Wait()

	seen := make(map[int64]int)
	for g, id := range ids {
		if id == 0 {
			t.Fatalf("goroutine %d got id 0", g)
		}
		if prev, dup := seen[id]; dup {
			t.Fatalf("goroutines %d and %d share id %d", prev, g, id)
		}
		seen[id] = g
	}
}
