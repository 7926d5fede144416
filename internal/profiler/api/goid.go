// Goroutine identity extraction.
//
// The per-goroutine context stacks are keyed by goroutine id. Go does not
// expose the id, so we parse it out of the first line of runtime.Stack
// output ("goroutine 123 [running]:"). This costs on the order of a
// microsecond per call; it is paid once per enter/exit rather than once
// per goroutine because the stack lookup needs the id every time.
//
// A TLS-based fast path (reading g.goid at a known offset, as the Go
// runtime's own race instrumentation does) would cut this to ~1ns on
// amd64/arm64, at the price of chasing the runtime.g layout across Go
// releases. The portable parser is the only implementation shipped.

package api

import (
	"runtime"
	"strconv"
)

// goroutineID returns the id of the calling goroutine, or 0 if the stack
// header cannot be parsed (which would indicate a runtime format change).
func goroutineID() int64 {
	// Only the first line is needed: "goroutine N [state]:".
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine id from a runtime.Stack header line.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	buf = buf[len(prefix):]

	end := 0
	for end < len(buf) && buf[end] >= '0' && buf[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	gid, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}
