package pprof

import (
	"testing"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

func TestBuildDedupsFunctionsAndLocations(t *testing.T) {
	leaf := stacktrace.StackFrame{Name: "foo", RelativePath: "app.rb", Lineno: 10}
	root := stacktrace.StackFrame{Name: "bar", RelativePath: "app.rb", Lineno: 2}
	traces := []stacktrace.StackTrace{
		{Trace: []stacktrace.StackFrame{leaf, root}},
		{Trace: []stacktrace.StackFrame{leaf, root}},
	}

	p := Build(traces, 10*time.Millisecond)

	if len(p.Function) != 2 {
		t.Errorf("len(Function) = %d, want 2 (deduped across both samples)", len(p.Function))
	}
	if len(p.Location) != 2 {
		t.Errorf("len(Location) = %d, want 2", len(p.Location))
	}
	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
	for _, s := range p.Sample {
		if len(s.Location) != 2 {
			t.Errorf("sample has %d locations, want 2", len(s.Location))
		}
		if s.Value[0] != 1 {
			t.Errorf("sample count value = %d, want 1", s.Value[0])
		}
	}
}

func TestBuildPreservesLeafFirstOrder(t *testing.T) {
	leaf := stacktrace.StackFrame{Name: "leaf"}
	root := stacktrace.StackFrame{Name: "root"}
	traces := []stacktrace.StackTrace{{Trace: []stacktrace.StackFrame{leaf, root}}}

	p := Build(traces, time.Millisecond)
	locs := p.Sample[0].Location
	if locs[0].Line[0].Function.Name != "leaf" || locs[1].Line[0].Function.Name != "root" {
		t.Errorf("expected leaf-first location order, got %s, %s",
			locs[0].Line[0].Function.Name, locs[1].Line[0].Function.Name)
	}
}
