// Package clock provides the monotonic timestamp source for the profiler.
//
// Every duration the profiler reports is the difference of two values
// returned by Now(). The clock is the runtime's only OS dependency, and it
// sits on the enter/exit hot path, so it must be a single call with zero
// allocations.
package clock

import "time"

// base anchors the monotonic reading. Durations are differences of Now()
// values, so the choice of epoch is arbitrary.
var base = time.Now()

// Now returns the current monotonic time in nanoseconds since an arbitrary
// process-local epoch.
//
// time.Since reads the monotonic component of the wall clock, so the value
// never goes backwards across NTP adjustments or DST changes.
func Now() int64 {
	return int64(time.Since(base))
}
