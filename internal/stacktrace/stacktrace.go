// Package stacktrace defines the data model shared by every stage of the
// profiler: a decoded call site (StackFrame) and an ordered sample of call
// sites from one thread at one instant (StackTrace).
package stacktrace

import "time"

// UnknownCFunctionName is the label used for C stack frames the walker
// can't decode further (no iseq, just a native call).
const UnknownCFunctionName = "(unknown) [c function]"

// StackFrame is one decoded call site: a method or block label plus the
// source location the Ruby VM recorded for it.
type StackFrame struct {
	// Name is the method or block label, e.g. "block in <main>".
	Name string
	// RelativePath is the source file path the way Ruby recorded it,
	// usually relative to $LOAD_PATH.
	RelativePath string
	// AbsolutePath is the fully resolved path, when the running Ruby
	// version's iseq carries one (>= 1.9.2).
	AbsolutePath string
	// HasAbsolutePath distinguishes "no absolute path available" (older
	// Rubies) from "absolute path happens to be empty".
	HasAbsolutePath bool
	// Lineno is 1-based; 0 means unknown.
	Lineno uint32
}

// Path returns AbsolutePath when present, else RelativePath.
func (f StackFrame) Path() string {
	if f.HasAbsolutePath {
		return f.AbsolutePath
	}
	return f.RelativePath
}

func (f StackFrame) String() string {
	return f.Name + " - " + f.Path() + ":" + itoa(f.Lineno)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// UnknownCFunction is the sentinel frame standing in for a C frame the
// walker can't decode (no iseq).
func UnknownCFunction() StackFrame {
	return StackFrame{
		Name:         UnknownCFunctionName,
		RelativePath: "(unknown)",
	}
}

// StackTrace is one sample: an ordered sequence of frames from innermost
// (the frame that was executing) to outermost, plus provenance.
type StackTrace struct {
	// Trace is non-empty; a trace made only of C frames degenerates to
	// [UnknownCFunction()].
	Trace []StackFrame

	// PID is which process the trace came from; filled in by the sampler,
	// not the walker.
	PID int
	// HasPID distinguishes "no pid known" from pid 0.
	HasPID bool

	// ThreadID is the Ruby-assigned thread id.
	ThreadID    uint64
	HasThreadID bool

	// Time is the wall-clock instant the sample was taken.
	Time    time.Time
	HasTime bool
}

// WithPID returns a copy of t tagged with the given pid.
func (t StackTrace) WithPID(pid int) StackTrace {
	t.PID = pid
	t.HasPID = true
	return t
}
