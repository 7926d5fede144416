// Package stack implements the per-goroutine context stack that tracks
// in-flight section activations and their nesting.
//
// Each goroutine owns exactly one Stack. A Stack is never read or written
// by any other goroutine, so it needs no synchronization; the runtime layer
// above enforces the ownership by keying stacks on goroutine id.
//
// Capacity is fixed: a goroutine nesting deeper than MaxNestingDepth gets
// InvalidContext back and that activation goes unmeasured. The stack itself
// is left untouched on overflow.
package stack

const (
	// MaxNestingDepth bounds how deeply sections may nest on one
	// goroutine. Together with section.MaxSections it fixes all memory
	// the runtime can ever use.
	MaxNestingDepth = 64

	// InvalidContext is returned when an activation cannot be tracked.
	InvalidContext = -1
)

// Context records one in-flight activation: which section it belongs to,
// when it started, and the context directly beneath it on the same stack.
// Contexts are created on enter, destroyed on exit, and never escape the
// owning goroutine.
type Context struct {
	SectionIndex  int
	StartNS       int64
	ParentContext int
}

// Stack is a fixed-capacity stack of Contexts. The context id handed to
// callers is the slot index, which equals the nesting depth at push time.
type Stack struct {
	contexts [MaxNestingDepth]Context
	top      int
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{top: InvalidContext}
}

// Push creates a context for an activation of sectionIndex starting at
// startNS and returns its context id. On overflow it returns
// (InvalidContext, false) and leaves the stack unmodified.
func (s *Stack) Push(sectionIndex int, startNS int64) (int, bool) {
	id := s.top + 1
	if id >= MaxNestingDepth {
		return InvalidContext, false
	}
	s.contexts[id] = Context{
		SectionIndex:  sectionIndex,
		StartNS:       startNS,
		ParentContext: s.top,
	}
	s.top = id
	return id, true
}

// Top returns the context id of the current top, or InvalidContext when
// the stack is empty.
func (s *Stack) Top() int {
	return s.top
}

// At returns the context with the given id, or nil when the id is outside
// the currently valid range. Ids above the top are stale handles from
// already-popped activations and are rejected.
func (s *Stack) At(id int) *Context {
	if id < 0 || id > s.top {
		return nil
	}
	return &s.contexts[id]
}

// PopIf pops the stack only when id is exactly the current top. A
// mismatched exit order leaves the stack as it was, so a call-site bug can
// forfeit its own timing but never corrupts the contexts beneath it.
func (s *Stack) PopIf(id int) bool {
	if id != s.top || id < 0 {
		return false
	}
	s.top--
	return true
}

// Depth returns the number of in-flight activations.
func (s *Stack) Depth() int {
	return s.top + 1
}
