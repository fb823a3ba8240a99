// Package summary renders the terminal summary table rbspy prints
// during a live `record` session (ui/summary.rs): each distinct leaf
// frame, how many samples it was on top of the stack for, and what
// fraction of the total that is.
package summary

import (
	"fmt"
	"io"
	"sort"

	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

// Row is one leaf frame's tally.
type Row struct {
	Frame   stacktrace.StackFrame
	Samples int
	Percent float64
}

// Build tallies how often each distinct leaf frame appears across
// traces, sorted by descending sample count.
func Build(traces []stacktrace.StackTrace) []Row {
	type key struct {
		name, path string
		line       uint32
	}
	counts := make(map[key]int)
	frames := make(map[key]stacktrace.StackFrame)
	leafSamples := 0

	for _, t := range traces {
		if len(t.Trace) == 0 {
			continue
		}
		leaf := t.Trace[0]
		k := key{leaf.Name, leaf.Path(), leaf.Lineno}
		counts[k]++
		frames[k] = leaf
		leafSamples++
	}

	rows := make([]Row, 0, len(counts))
	for k, c := range counts {
		pct := 0.0
		if leafSamples > 0 {
			pct = 100 * float64(c) / float64(leafSamples)
		}
		rows = append(rows, Row{Frame: frames[k], Samples: c, Percent: pct})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Samples != rows[j].Samples {
			return rows[i].Samples > rows[j].Samples
		}
		return rows[i].Frame.Name < rows[j].Frame.Name
	})
	return rows
}

// Write prints the top n rows (0 means all) as a plain-text table.
func Write(w io.Writer, traces []stacktrace.StackTrace, n int) error {
	rows := Build(traces)
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	if _, err := fmt.Fprintf(w, "%6s %6s  %s\n", "PCT", "SAMPLES", "FRAME"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%5.1f%% %7d  %s\n", r.Percent, r.Samples, r.Frame.String()); err != nil {
			return err
		}
	}
	return nil
}
