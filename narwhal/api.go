package narwhal

import (
	"io"
	"os"

	"github.com/narwhalyzer/narwhalyzer/internal/profiler/api"
	"github.com/narwhalyzer/narwhalyzer/internal/profiler/section"
	"github.com/narwhalyzer/narwhalyzer/internal/profiler/stack"
)

const (
	// InvalidIndex is returned by Register when a section cannot be
	// created. Passing it to Enter is safe and yields InvalidContext.
	InvalidIndex = section.InvalidIndex

	// InvalidContext is returned by Enter when an activation cannot be
	// tracked. Passing it to Exit is a no-op.
	InvalidContext = stack.InvalidContext

	// MaxSections is the fixed capacity of the section registry.
	MaxSections = section.MaxSections

	// MaxNestingDepth is the fixed per-goroutine nesting limit.
	MaxNestingDepth = stack.MaxNestingDepth
)

// Init initializes the profiling runtime and records the process start
// timestamp. Idempotent; the first registration triggers it lazily, so
// calling Init explicitly is optional but gives a more accurate program
// time baseline.
func Init() {
	api.Default.Init()
}

// Fini prints the profiling report to stdout, exactly once. It is safe to
// wire to several independent shutdown paths - a defer in main plus a
// signal handler, say - and only the first caller produces output.
func Fini() {
	api.Default.Fini(os.Stdout)
}

// FiniTo is Fini writing to w instead of stdout. The one-shot guarantee
// is shared with Fini: whichever runs first reports.
func FiniTo(w io.Writer) {
	api.Default.Fini(w)
}

// Register returns the stable index for the section identified by the
// exact (name, file, line) triple, creating it on first use. Idempotent
// and safe from any goroutine. Returns InvalidIndex when the registry is
// full; treat that as "do not instrument".
func Register(name, file string, line int) int {
	return api.Default.RegisterSection(name, file, line)
}

// Enter begins an activation of the section at index on the calling
// goroutine and returns a context id for the matching Exit. Returns
// InvalidContext for an invalid index or when nesting is too deep.
func Enter(index int) int {
	return api.Default.SectionEnter(index)
}

// Exit completes the activation identified by ctxID. Invalid or stale
// ids are ignored.
func Exit(ctxID int) {
	api.Default.SectionExit(ctxID)
}
