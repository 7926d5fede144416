// Package section implements the process-wide section registry and the
// per-section statistics aggregator.
//
// A Section is one named, registered region of code identified by its
// (name, file, line) triple. Sections live in a fixed-capacity Table and are
// never destroyed; all memory used by the registry is bounded at compile
// time and nothing on the enter/exit hot path allocates.
//
// Statistics are embedded in the Section itself. All counter updates are
// single-word atomic operations; min/max use a shared compare-and-retry
// loop. Cross-thread ordering of individual updates is not a contract of
// this package - only the final aggregate values read after all writers
// have quiesced.
package section

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	// MaxSections bounds the number of distinct sections a process can
	// register. Registration beyond this returns InvalidIndex.
	MaxSections = 1024

	// InvalidIndex is returned when a section cannot be registered.
	// Callers must treat it as "do not instrument" and never pass it
	// to enter/exit.
	InvalidIndex = -1

	// NoParent marks a section with no observed enclosing section.
	NoParent = -1
)

// Section holds the identity and aggregate statistics for one instrumented
// region. Identity fields are immutable after registration; the counters
// are mutated by any thread for the life of the process.
type Section struct {
	name string
	file string
	line int

	entryCount   atomic.Uint64
	cumulativeNS atomic.Uint64
	minNS        atomic.Uint64
	maxNS        atomic.Uint64

	// parentIndex is the first-observed enclosing section, NoParent until
	// a nesting is seen. Set at most once, first-writer-wins.
	parentIndex atomic.Int64
}

// Name returns the section's display name.
func (s *Section) Name() string { return s.name }

// File returns the source file the section was registered from.
func (s *Section) File() string { return s.file }

// Line returns the source line the section was registered from.
func (s *Section) Line() int { return s.line }

// EntryCount returns the number of times the section has been entered.
func (s *Section) EntryCount() uint64 { return s.entryCount.Load() }

// CumulativeNS returns the sum of all completed activation durations.
func (s *Section) CumulativeNS() uint64 { return s.cumulativeNS.Load() }

// MinNS returns the shortest completed activation, or math.MaxUint64 when
// no activation has completed yet.
func (s *Section) MinNS() uint64 { return s.minNS.Load() }

// MaxNS returns the longest completed activation.
func (s *Section) MaxNS() uint64 { return s.maxNS.Load() }

// ParentIndex returns the first-observed enclosing section's index, or
// NoParent.
func (s *Section) ParentIndex() int { return int(s.parentIndex.Load()) }

// RecordEntry counts one activation start.
//
// Called on the hot path by SectionEnter. A single relaxed atomic add;
// no ordering with the other counters is required.
func (s *Section) RecordEntry() {
	s.entryCount.Add(1)
}

// RecordElapsed folds one completed activation duration into the
// cumulative sum and the running extrema.
//
// Called on the hot path by SectionExit.
func (s *Section) RecordElapsed(elapsedNS uint64) {
	s.cumulativeNS.Add(elapsedNS)
	updateExtremum(&s.minNS, elapsedNS, less)
	updateExtremum(&s.maxNS, elapsedNS, greater)
}

// ObserveParent records the enclosing section observed at enter time.
// Only the first observation anywhere sticks; later nestings of the same
// section under a different parent are ignored. Which observation is
// "first" under concurrency is inherently run-dependent.
func (s *Section) ObserveParent(parent int) {
	s.parentIndex.CompareAndSwap(NoParent, int64(parent))
}

// reset initializes the statistics for a freshly reserved slot. Called
// under the registration mutex before the slot's index is handed out.
func (s *Section) reset(name, file string, line int) {
	s.name = name
	s.file = file
	s.line = line
	s.entryCount.Store(0)
	s.cumulativeNS.Store(0)
	s.minNS.Store(math.MaxUint64)
	s.maxNS.Store(0)
	s.parentIndex.Store(NoParent)
}

// updateExtremum publishes candidate into v if it improves on the current
// value under the given ordering, retrying on interference. The same loop
// serves both extrema; it terminates because every failed CAS means
// another writer moved the extremum, and candidate only needs to win while
// it still improves on the just-read value.
func updateExtremum(v *atomic.Uint64, candidate uint64, better func(candidate, current uint64) bool) {
	for {
		current := v.Load()
		if !better(candidate, current) {
			return
		}
		if v.CompareAndSwap(current, candidate) {
			return
		}
	}
}

func less(a, b uint64) bool { return a < b }

func greater(a, b uint64) bool { return a > b }

// Table is the process-wide registry: a fixed array of Sections plus an
// atomic count of slots in use. Indices are dense, 0-based, assigned at
// registration and never reused.
type Table struct {
	mu       sync.Mutex
	sections [MaxSections]Section
	count    atomic.Int64
	logger   zerolog.Logger

	// overflowWarned limits the capacity diagnostic to one line per
	// process instead of one per failed registration.
	overflowWarned atomic.Bool
}

// NewTable creates an empty registry. Diagnostics go to the given logger.
func NewTable(logger zerolog.Logger) *Table {
	return &Table{logger: logger}
}

// Register returns the index for the exact (name, file, line) triple,
// creating a new Section if it has not been seen before. Registration is
// idempotent: the same triple always maps to the same index, and distinct
// triples never share one.
//
// The mutex guards only this lookup-or-insert path; it is expected to be
// taken on every activation of call sites that do not cache their index,
// so the duplicate-lookup path stays cheap (a linear scan bounded by table
// size). Callers are still expected to cache the returned index.
//
// When the table is full, Register emits a warning and returns
// InvalidIndex; the activation simply goes unmeasured.
func (t *Table) Register(name, file string, line int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := int(t.count.Load())
	for i := 0; i < count; i++ {
		s := &t.sections[i]
		if s.line == line && s.name == name && s.file == file {
			return i
		}
	}

	idx := int(t.count.Add(1)) - 1
	if idx >= MaxSections {
		t.count.Add(-1)
		if t.overflowWarned.CompareAndSwap(false, true) {
			t.logger.Warn().
				Str("section", name).
				Str("file", file).
				Int("line", line).
				Int("capacity", MaxSections).
				Msg("maximum section count exceeded; further sections will not be measured")
		}
		return InvalidIndex
	}

	t.sections[idx].reset(name, file, line)
	return idx
}

// Count returns the number of sections currently registered.
func (t *Table) Count() int {
	return int(t.count.Load())
}

// At returns the section at index i. The index must come from Register;
// out-of-range indices return nil.
func (t *Table) At(i int) *Section {
	if i < 0 || i >= t.Count() {
		return nil
	}
	return &t.sections[i]
}

// Stats is a plain-data snapshot of one section, taken for reporting after
// instrumentation traffic has stopped.
type Stats struct {
	Index        int
	Name         string
	File         string
	Line         int
	EntryCount   uint64
	CumulativeNS uint64
	MinNS        uint64
	MaxNS        uint64
	ParentIndex  int
}

// Snapshot copies every registered section's current statistics, in index
// order. The loads are plain atomics; the snapshot is only meaningful once
// no writers remain, which is the report generator's contract.
func (t *Table) Snapshot() []Stats {
	count := t.Count()
	out := make([]Stats, count)
	for i := 0; i < count; i++ {
		s := &t.sections[i]
		out[i] = Stats{
			Index:        i,
			Name:         s.Name(),
			File:         s.File(),
			Line:         s.Line(),
			EntryCount:   s.EntryCount(),
			CumulativeNS: s.CumulativeNS(),
			MinNS:        s.MinNS(),
			MaxNS:        s.MaxNS(),
			ParentIndex:  s.ParentIndex(),
		}
	}
	return out
}
