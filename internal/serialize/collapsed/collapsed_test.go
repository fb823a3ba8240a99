package collapsed

import (
	"bytes"
	"testing"

	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

func f(name string) stacktrace.StackFrame { return stacktrace.StackFrame{Name: name} }

func TestFoldedKeyReversesLeafFirstOrder(t *testing.T) {
	trace := stacktrace.StackTrace{Trace: []stacktrace.StackFrame{f("leaf"), f("mid"), f("root")}}
	got := foldedKey(trace)
	want := "root;mid;leaf"
	if got != want {
		t.Errorf("foldedKey() = %q, want %q", got, want)
	}
}

func TestWriteAggregatesIdenticalStacks(t *testing.T) {
	traces := []stacktrace.StackTrace{
		{Trace: []stacktrace.StackFrame{f("leaf"), f("root")}},
		{Trace: []stacktrace.StackFrame{f("leaf"), f("root")}},
		{Trace: []stacktrace.StackFrame{f("other")}},
	}
	var buf bytes.Buffer
	if err := Write(&buf, traces); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "other 1\nroot;leaf 2\n"
	if buf.String() != want {
		t.Errorf("Write() = %q, want %q", buf.String(), want)
	}
}
