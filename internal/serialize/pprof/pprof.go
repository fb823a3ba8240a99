// Package pprof serializes aggregated stack traces into a
// github.com/google/pprof profile.Profile, the same output shape
// rbspy's own pprof reporter (ui/pprof.rs) produces. It has no say in
// what gets sampled, only in how already-collected traces get written
// out.
package pprof

import (
	"io"
	"time"

	"github.com/google/pprof/profile"

	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

// Write aggregates traces into a pprof CPU-style profile (one sample
// per trace, unit "samples"/count and "nanoseconds"/time) and writes it,
// gzip-compressed, to w.
func Write(w io.Writer, traces []stacktrace.StackTrace, period time.Duration) error {
	p := Build(traces, period)
	return p.Write(w)
}

// Build constructs the profile.Profile without writing it, for callers
// that want to inspect or further merge profiles before writing.
func Build(traces []stacktrace.StackTrace, period time.Duration) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "time", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "samples", Unit: "count"},
		Period:     int64(period),
		TimeNanos:  time.Now().UnixNano(),
	}

	locByName := make(map[string]*profile.Location)
	funcByName := make(map[string]*profile.Function)
	nextFuncID := uint64(1)
	nextLocID := uint64(1)

	funcFor := func(name, file string, line uint32) *profile.Function {
		key := name + "\x00" + file
		if fn, ok := funcByName[key]; ok {
			return fn
		}
		fn := &profile.Function{ID: nextFuncID, Name: name, Filename: file}
		nextFuncID++
		funcByName[key] = fn
		p.Function = append(p.Function, fn)
		return fn
	}

	locFor := func(f stacktrace.StackFrame) *profile.Location {
		key := f.String()
		if loc, ok := locByName[key]; ok {
			return loc
		}
		fn := funcFor(f.Name, f.Path(), f.Lineno)
		loc := &profile.Location{
			ID:   nextLocID,
			Line: []profile.Line{{Function: fn, Line: int64(f.Lineno)}},
		}
		nextLocID++
		locByName[key] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	for _, t := range traces {
		// pprof wants leaf-first location order; StackTrace.Trace is
		// stored leaf-first already.
		locs := make([]*profile.Location, 0, len(t.Trace))
		for _, f := range t.Trace {
			locs = append(locs, locFor(f))
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{1, int64(period)},
		})
	}

	return p
}
