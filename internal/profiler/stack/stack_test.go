package stack

import "testing"

// TestPushPop tests basic push/pop ordering and context id assignment.
func TestPushPop(t *testing.T) {
	s := New()

	if s.Depth() != 0 {
		t.Fatalf("new stack depth = %d, want 0", s.Depth())
	}
	if s.Top() != InvalidContext {
		t.Fatalf("new stack top = %d, want InvalidContext", s.Top())
	}

	id0, ok := s.Push(7, 100)
	if !ok || id0 != 0 {
		t.Fatalf("first Push = (%d, %v), want (0, true)", id0, ok)
	}
	id1, ok := s.Push(9, 200)
	if !ok || id1 != 1 {
		t.Fatalf("second Push = (%d, %v), want (1, true)", id1, ok)
	}

	ctx := s.At(id1)
	if ctx == nil {
		t.Fatal("At(top) returned nil")
	}
	if ctx.SectionIndex != 9 || ctx.StartNS != 200 || ctx.ParentContext != id0 {
		t.Errorf("top context = %+v, want section 9, start 200, parent %d", *ctx, id0)
	}

	if !s.PopIf(id1) {
		t.Error("PopIf(top) failed")
	}
	if s.Top() != id0 {
		t.Errorf("top after pop = %d, want %d", s.Top(), id0)
	}
	if !s.PopIf(id0) {
		t.Error("PopIf(bottom) failed")
	}
	if s.Depth() != 0 {
		t.Errorf("depth after popping everything = %d, want 0", s.Depth())
	}
}

// TestPushOverflow verifies an overflowing push fails and leaves the
// stack untouched.
func TestPushOverflow(t *testing.T) {
	s := New()
	for i := 0; i < MaxNestingDepth; i++ {
		id, ok := s.Push(i, int64(i))
		if !ok || id != i {
			t.Fatalf("Push %d = (%d, %v), want (%d, true)", i, id, ok, i)
		}
	}

	id, ok := s.Push(999, 999)
	if ok || id != InvalidContext {
		t.Fatalf("overflow Push = (%d, %v), want (InvalidContext, false)", id, ok)
	}
	if s.Depth() != MaxNestingDepth {
		t.Errorf("depth after overflow = %d, want %d", s.Depth(), MaxNestingDepth)
	}
	if top := s.At(s.Top()); top == nil || top.SectionIndex != MaxNestingDepth-1 {
		t.Error("overflow modified the existing top context")
	}
}

// TestPopIfMismatch verifies out-of-order exits leave the stack as it was.
func TestPopIfMismatch(t *testing.T) {
	s := New()
	outer, _ := s.Push(1, 10)
	inner, _ := s.Push(2, 20)

	// Exiting the outer context while the inner is live must not pop.
	if s.PopIf(outer) {
		t.Error("PopIf accepted a non-top context id")
	}
	if s.Top() != inner {
		t.Errorf("top after mismatched pop = %d, want %d", s.Top(), inner)
	}

	if s.PopIf(InvalidContext) {
		t.Error("PopIf accepted InvalidContext")
	}
}

// TestAtRejectsStaleIDs verifies ids from popped contexts are no longer
// resolvable.
func TestAtRejectsStaleIDs(t *testing.T) {
	s := New()
	id, _ := s.Push(3, 30)
	s.PopIf(id)

	if ctx := s.At(id); ctx != nil {
		t.Errorf("At(stale id) = %+v, want nil", *ctx)
	}
	if ctx := s.At(-1); ctx != nil {
		t.Error("At(-1) returned non-nil")
	}
	if ctx := s.At(MaxNestingDepth); ctx != nil {
		t.Error("At(out of range) returned non-nil")
	}
}
