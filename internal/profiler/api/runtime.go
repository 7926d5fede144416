// Package api implements the profiling runtime consumed by instrumented
// call sites.
//
// The three entry points - RegisterSection, SectionEnter, SectionExit -
// are invoked on every activation of an instrumented region, potentially
// from many goroutines at once, so the enter/exit path touches shared
// state only through single-word atomics and allocates nothing after a
// goroutine's first activation.
//
// All process-wide state lives in one Runtime value rather than ambient
// package globals; its construction and teardown follow the lifecycle
// state machine (uninitialized -> initialized -> reported, each transition
// a one-shot compare-and-swap). The package-level Default runtime exists
// for the public narwhal wrappers.
package api

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/narwhalyzer/narwhalyzer/internal/profiler/clock"
	"github.com/narwhalyzer/narwhalyzer/internal/profiler/report"
	"github.com/narwhalyzer/narwhalyzer/internal/profiler/section"
	"github.com/narwhalyzer/narwhalyzer/internal/profiler/stack"
)

// Lifecycle states. Transitions are strictly forward and each happens at
// most once per Runtime.
const (
	stateUninitialized uint32 = iota
	stateInitialized
	stateReported
)

// Runtime is the process-wide profiling state: the section registry, the
// per-goroutine context stacks, and the lifecycle controller.
type Runtime struct {
	table *section.Table

	// stacks maps goroutine id -> *stack.Stack. Each stack is only ever
	// touched by its owning goroutine; the map itself is the sole shared
	// structure, and sync.Map keeps the repeat-lookup path lock-free.
	// Stacks are never removed: a goroutine that leaked an unmatched
	// enter keeps its slot occupied, which is the documented caller
	// contract, and the map is bounded by live goroutine count.
	stacks sync.Map

	state   atomic.Uint32
	startNS atomic.Int64

	logger zerolog.Logger
}

// New creates an uninitialized Runtime. Diagnostics go to logger; pass
// zerolog.Nop() to silence them.
func New(logger zerolog.Logger) *Runtime {
	return &Runtime{
		table:  section.NewTable(logger),
		logger: logger,
	}
}

// Default is the process-wide runtime used by the public narwhal package.
// Instrumented programs have exactly one; tests build their own with New.
var Default = New(zerolog.New(os.Stderr).With().Timestamp().Str("component", "narwhalyzer").Logger())

// Init transitions the runtime to the initialized state and records the
// process start timestamp. Idempotent: only the first call (from any
// goroutine) wins, later calls are no-ops. Registration calls it lazily,
// so explicit initialization is optional.
func (r *Runtime) Init() {
	if r.state.CompareAndSwap(stateUninitialized, stateInitialized) {
		r.startNS.Store(clock.Now())
	}
}

// RegisterSection returns the stable index for the (name, file, line)
// triple, initializing the runtime first if no explicit Init happened.
// Thread-safe and idempotent. Returns section.InvalidIndex when the
// registry is full or the runtime has already reported.
func (r *Runtime) RegisterSection(name, file string, line int) int {
	r.Init()
	if r.state.Load() != stateInitialized {
		return section.InvalidIndex
	}
	return r.table.Register(name, file, line)
}

// SectionEnter begins an activation of the given section on the calling
// goroutine and returns its context id, or stack.InvalidContext when the
// index is invalid, the nesting is too deep, or the runtime is not in the
// initialized state. A failed enter changes nothing; the activation is
// simply not measured.
func (r *Runtime) SectionEnter(index int) int {
	if r.state.Load() != stateInitialized {
		return stack.InvalidContext
	}
	if index < 0 || index >= r.table.Count() {
		return stack.InvalidContext
	}

	st := r.stackFor(goroutineID())
	parentID := st.Top()

	id, ok := st.Push(index, clock.Now())
	if !ok {
		r.logger.Warn().
			Int("section", index).
			Int("depth", stack.MaxNestingDepth).
			Msg("maximum nesting depth exceeded; activation will not be measured")
		return stack.InvalidContext
	}

	sec := r.table.At(index)
	sec.RecordEntry()

	// First observation of this section nested under another wins the
	// parent edge, process-wide.
	if parentID != stack.InvalidContext {
		if parent := st.At(parentID); parent != nil {
			sec.ObserveParent(parent.SectionIndex)
		}
	}

	return id
}

// SectionExit completes the activation identified by ctxID: it folds the
// elapsed time into the section's statistics and pops the goroutine's
// stack if ctxID is exactly the current top.
//
// Ids outside the currently valid range (stale, negative, or from an
// already-popped context) are ignored. An out-of-order but in-range exit
// still records its section's elapsed time, and the stack is only popped
// at the top, so a misbehaving call site cannot corrupt the activations
// beneath it.
func (r *Runtime) SectionExit(ctxID int) {
	if r.state.Load() != stateInitialized {
		return
	}

	st := r.stackFor(goroutineID())
	ctx := st.At(ctxID)
	if ctx == nil {
		return
	}

	elapsed := clock.Now() - ctx.StartNS
	if sec := r.table.At(ctx.SectionIndex); sec != nil {
		sec.RecordElapsed(uint64(elapsed))
	}
	st.PopIf(ctxID)
}

// Fini transitions the runtime to the reported state and writes the
// profiling report to w. Exactly one of however many shutdown hooks call
// it (a primary defer and a backup signal handler, typically) produces
// output; the rest are no-ops. Instrumentation calls racing with or
// arriving after Fini are safely ignored because the enter path checks
// the lifecycle state, though their measurements are lost by design.
func (r *Runtime) Fini(w io.Writer) {
	switch {
	case r.state.CompareAndSwap(stateInitialized, stateReported):
		// Normal shutdown.
	case r.state.CompareAndSwap(stateUninitialized, stateReported):
		// Nothing was ever registered; still report that plainly.
		r.startNS.Store(clock.Now())
	default:
		return
	}

	programNS := clock.Now() - r.startNS.Load()
	rep := report.New(r.table.Snapshot(), programNS)
	rep.Format(w)
}

// Reported reports whether Fini has run.
func (r *Runtime) Reported() bool {
	return r.state.Load() == stateReported
}

// stackFor returns the calling goroutine's context stack, creating it on
// first use. The double Load around LoadOrStore keeps the steady-state
// path allocation-free.
func (r *Runtime) stackFor(gid int64) *stack.Stack {
	if v, ok := r.stacks.Load(gid); ok {
		return v.(*stack.Stack)
	}
	v, _ := r.stacks.LoadOrStore(gid, stack.New())
	return v.(*stack.Stack)
}

// Reset returns the runtime to the uninitialized state with an empty
// registry. Test support only; never safe while instrumented goroutines
// are running.
func (r *Runtime) Reset() {
	r.table = section.NewTable(r.logger)
	r.stacks = sync.Map{}
	r.startNS.Store(0)
	r.state.Store(stateUninitialized)
}
