// Package narwhal provides the public runtime API for the Narwhalyzer
// section profiler.
//
// Narwhalyzer records how much wall-clock time a process spends inside
// named code sections, across any number of goroutines, and prints a
// profiling report at process exit. Call sites bracket regions with three
// entry points - register a section, enter it, exit it - inserted either
// by the narwhalyzer instrumentation tool or by hand.
//
// # Quick Start
//
// The narwhalyzer tool inserts the calls for you:
//
//	$ narwhalyzer run main.go
//
// For manual instrumentation:
//
//	package main
//
//	import "github.com/narwhalyzer/narwhalyzer/narwhal"
//
//	func main() {
//		narwhal.Init()
//		defer narwhal.Fini()
//
//		compute()
//	}
//
//	var computeSection = narwhal.Register("compute", "main.go", 14)
//
//	func compute() {
//		defer narwhal.Begin(computeSection).End()
//		// ... work being measured ...
//	}
//
// On exit, Fini prints a flat summary table (entries, cumulative, mean,
// min, max, %total), a hierarchy tree reconstructed from observed nesting,
// and a file:line index for every executed section.
//
// # Contract
//
// Enter/Exit calls on one goroutine must nest like a stack for timing to
// be accurate. The runtime tolerates misuse - mismatched exits are
// ignored, capacity overflows degrade to "not measured" - and never
// panics or terminates the host process. Caching the index returned by
// Register is the call site's job; registering the same (name, file,
// line) triple repeatedly is correct, just slower.
//
// Capacities are fixed at compile time (1024 sections, nesting depth 64),
// which bounds all memory the runtime uses; the enter/exit hot path does
// not allocate.
package narwhal
