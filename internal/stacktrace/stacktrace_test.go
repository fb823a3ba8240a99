package stacktrace

import "testing"

func TestPathPrefersAbsolute(t *testing.T) {
	f := StackFrame{RelativePath: "lib/foo.rb", AbsolutePath: "/app/lib/foo.rb", HasAbsolutePath: true}
	if got := f.Path(); got != "/app/lib/foo.rb" {
		t.Errorf("Path() = %q, want absolute", got)
	}

	f.HasAbsolutePath = false
	if got := f.Path(); got != "lib/foo.rb" {
		t.Errorf("Path() = %q, want relative when no absolute path recorded", got)
	}
}

func TestStringFormat(t *testing.T) {
	f := StackFrame{Name: "foo", RelativePath: "a.rb", Lineno: 12}
	if got, want := f.String(), "foo - a.rb:12"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestWithPID(t *testing.T) {
	var tr StackTrace
	tr2 := tr.WithPID(123)
	if tr.HasPID {
		t.Error("WithPID must not mutate the receiver")
	}
	if !tr2.HasPID || tr2.PID != 123 {
		t.Errorf("WithPID result = %+v, want PID 123", tr2)
	}
}

func TestUnknownCFunction(t *testing.T) {
	f := UnknownCFunction()
	if f.Name != UnknownCFunctionName {
		t.Errorf("Name = %q, want %q", f.Name, UnknownCFunctionName)
	}
}
