// Package report reconstructs the section hierarchy from observed nesting
// and renders the end-of-process profiling report.
//
// The report has three parts: a flat summary table sorted by cumulative
// time, a hierarchy tree built from first-observed parent edges, and a
// location index. The structure and the computed columns (entries,
// cumulative, mean, min, max, %total) are the stable external contract;
// the glyphs are not.
//
// Report generation runs once, after all instrumented goroutines have
// quiesced, so it works on a plain snapshot and needs no synchronization.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/narwhalyzer/narwhalyzer/internal/profiler/section"
)

// Report is a renderable snapshot of the registry at shutdown.
type Report struct {
	sections  []section.Stats
	programNS int64
}

// New builds a report from a registry snapshot and the total program time.
func New(sections []section.Stats, programNS int64) *Report {
	return &Report{sections: sections, programNS: programNS}
}

// active returns the indices of sections that were entered at least once,
// in ascending index order. Sections with a zero entry count are excluded
// from every part of the report.
func (r *Report) active() []int {
	var idx []int
	for i := range r.sections {
		if r.sections[i].EntryCount > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Format writes the full report to w.
func (r *Report) Format(w io.Writer) {
	active := r.active()

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔══════════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║                  NARWHALYZER PROFILING REPORT                    ║\n")
	fmt.Fprintf(w, "╚══════════════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Total Program Time: %s\n", FormatDuration(clampNS(r.programNS)))
	fmt.Fprintf(w, "Sections Instrumented: %d\n\n", len(active))

	if len(active) == 0 {
		fmt.Fprintf(w, "No instrumented sections were executed.\n\n")
		fmt.Fprintf(w, "═══ END OF NARWHALYZER REPORT ═══\n\n")
		return
	}

	r.formatFlatSummary(w, active)
	r.formatHierarchy(w, active)
	r.formatLocationIndex(w, active)

	fmt.Fprintf(w, "═══ END OF NARWHALYZER REPORT ═══\n\n")
}

// String renders the report into a string. Test and debug convenience.
func (r *Report) String() string {
	var buf strings.Builder
	r.Format(&buf)
	return buf.String()
}

// formatFlatSummary renders the sorted statistics table.
//
// Sort order: cumulative time descending; equal cumulative times keep
// ascending index order. The stable sort over an already index-ordered
// slice makes the output reproducible run to run, which the original
// unstable sort did not guarantee.
func (r *Report) formatFlatSummary(w io.Writer, active []int) {
	sorted := make([]int, len(active))
	copy(sorted, active)
	sort.SliceStable(sorted, func(a, b int) bool {
		return r.sections[sorted[a]].CumulativeNS > r.sections[sorted[b]].CumulativeNS
	})

	nameWidth := 12
	for _, i := range active {
		if n := len(r.sections[i].Name); n > nameWidth {
			nameWidth = n
		}
	}
	if nameWidth > 40 {
		nameWidth = 40
	}

	fmt.Fprintf(w, "═══ FLAT SUMMARY (sorted by cumulative time) ═══\n\n")

	sep := tableSeparator(nameWidth)
	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "| %-*s | %10s | %12s | %12s | %12s | %12s | %8s |\n",
		nameWidth, "Section Name", "Entries", "Cumulative", "Mean", "Min", "Max", "%Total")
	fmt.Fprint(w, sep)

	for _, i := range sorted {
		s := &r.sections[i]

		mean := s.CumulativeNS / s.EntryCount
		percent := 0.0
		if r.programNS > 0 {
			percent = 100.0 * float64(s.CumulativeNS) / float64(r.programNS)
		}

		name := s.Name
		if len(name) > nameWidth {
			name = name[:nameWidth-3] + "..."
		}

		// A section entered but never exited still carries the min
		// sentinel; show a dash instead of MaxUint64 nanoseconds.
		minStr := "-"
		if s.MinNS != math.MaxUint64 {
			minStr = FormatDuration(s.MinNS)
		}

		fmt.Fprintf(w, "| %-*s | %10d | %12s | %12s | %12s | %12s | %7.2f%% |\n",
			nameWidth, name,
			s.EntryCount,
			FormatDuration(s.CumulativeNS),
			FormatDuration(mean),
			minStr,
			FormatDuration(s.MaxNS),
			percent)
	}

	fmt.Fprint(w, sep)
	fmt.Fprintf(w, "\n")
}

// formatHierarchy renders the parent/child tree, depth-first from each
// root. Children stay in discovery (index) order, unsorted.
func (r *Report) formatHierarchy(w io.Writer, active []int) {
	fmt.Fprintf(w, "═══ HIERARCHICAL VIEW ═══\n\n")

	children := make(map[int][]int)
	var roots []int
	for _, i := range active {
		parent := r.sections[i].ParentIndex
		// A recursive section observes itself as parent; treat it as a
		// root rather than creating a cycle.
		if parent == section.NoParent || parent == i || parent >= len(r.sections) {
			roots = append(roots, i)
			continue
		}
		children[parent] = append(children[parent], i)
	}

	visited := make(map[int]bool)
	for _, root := range roots {
		r.formatRoot(w, children, visited, root)
	}

	// Sections caught in a mutual parent cycle are reachable from no
	// root; render them as roots and let the visited set break the cycle.
	for _, i := range active {
		if !visited[i] {
			r.formatRoot(w, children, visited, i)
		}
	}
}

func (r *Report) formatRoot(w io.Writer, children map[int][]int, visited map[int]bool, root int) {
	s := &r.sections[root]
	fmt.Fprintf(w, "%s (%s)\n", s.Name, FormatDuration(s.CumulativeNS))
	visited[root] = true
	kids := children[root]
	for j, child := range kids {
		r.formatSubtree(w, children, visited, child, "", j == len(kids)-1)
	}
	fmt.Fprintf(w, "\n")
}

// formatSubtree prints one node and recurses into its children. The
// visited set breaks mutual parent cycles, which the first-writer-wins
// edge assignment can produce under pathological nesting.
func (r *Report) formatSubtree(w io.Writer, children map[int][]int, visited map[int]bool, idx int, prefix string, isLast bool) {
	if visited[idx] {
		return
	}
	visited[idx] = true

	s := &r.sections[idx]
	connector := "├── "
	childIndent := "│   "
	if isLast {
		connector = "└── "
		childIndent = "    "
	}
	fmt.Fprintf(w, "%s%s%s (%s)\n", prefix, connector, s.Name, FormatDuration(s.CumulativeNS))

	kids := children[idx]
	for j, child := range kids {
		r.formatSubtree(w, children, visited, child, prefix+childIndent, j == len(kids)-1)
	}
}

// formatLocationIndex renders the file:line index for every active section.
func (r *Report) formatLocationIndex(w io.Writer, active []int) {
	fmt.Fprintf(w, "═══ SECTION DETAILS ═══\n\n")

	for _, i := range active {
		s := &r.sections[i]
		file := s.File
		if file == "" {
			file = "<unknown>"
		}
		fmt.Fprintf(w, "  %s\n", s.Name)
		fmt.Fprintf(w, "    Location: %s:%d\n", file, s.Line)
		fmt.Fprintf(w, "    Entries:  %d\n", s.EntryCount)
		fmt.Fprintf(w, "\n")
	}
}

func tableSeparator(nameWidth int) string {
	var b strings.Builder
	for _, width := range []int{nameWidth + 2, 12, 14, 14, 14, 14, 10} {
		b.WriteString("+")
		b.WriteString(strings.Repeat("-", width))
	}
	b.WriteString("+\n")
	return b.String()
}

// FormatDuration renders nanoseconds at a human scale: seconds,
// milliseconds, or microseconds to three decimals, raw below 1µs.
func FormatDuration(ns uint64) string {
	switch {
	case ns >= 1_000_000_000:
		return fmt.Sprintf("%.3f s", float64(ns)/1e9)
	case ns >= 1_000_000:
		return fmt.Sprintf("%.3f ms", float64(ns)/1e6)
	case ns >= 1_000:
		return fmt.Sprintf("%.3f us", float64(ns)/1e3)
	default:
		return fmt.Sprintf("%d ns", ns)
	}
}

func clampNS(ns int64) uint64 {
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}
