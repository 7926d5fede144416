package narwhal

// Guard pairs a context id with a validity flag and guarantees the exit
// runs at most once. It is the deterministic scope-cleanup construct for
// call sites that want automatic exit on every return path:
//
//	defer narwhal.Begin(idx).End()
//
// A Guard built from a failed Enter is inert: End does nothing.
type Guard struct {
	ctxID int
	valid bool
}

// Begin enters the section at index and returns a guard that will exit it.
func Begin(index int) *Guard {
	ctxID := Enter(index)
	return &Guard{ctxID: ctxID, valid: ctxID != InvalidContext}
}

// End exits the guarded activation. Only the first call has any effect.
func (g *Guard) End() {
	if g == nil || !g.valid {
		return
	}
	g.valid = false
	Exit(g.ctxID)
}
