// Package collapsed writes the folded-stack text format Brendan Gregg's
// flamegraph.pl (and rbspy's own ui/flamegraph.rs) consume: one line
// per unique call stack, frames joined by ';' root-first, a space, and
// a sample count.
package collapsed

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

// Write collapses traces into folded-stack lines and writes them to w,
// sorted for stable output (not required by the format, but matches
// how reproducible test fixtures are usually generated).
func Write(w io.Writer, traces []stacktrace.StackTrace) error {
	counts := make(map[string]int)
	for _, t := range traces {
		counts[foldedKey(t)]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s %d\n", k, counts[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// foldedKey renders one trace as "root;...;leaf", the order
// flamegraph.pl expects (the reverse of StackTrace.Trace's leaf-first
// storage order).
func foldedKey(t stacktrace.StackTrace) string {
	if len(t.Trace) == 0 {
		return "(empty)"
	}
	var b []byte
	for i := len(t.Trace) - 1; i >= 0; i-- {
		if i != len(t.Trace)-1 {
			b = append(b, ';')
		}
		b = append(b, t.Trace[i].Name...)
	}
	return string(b)
}
