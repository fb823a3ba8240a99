package addrfinder

import (
	"encoding/binary"
	"testing"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
	"github.com/rbspy/rbspy-sub000/internal/rubyvm"
	"github.com/rbspy/rbspy-sub000/internal/version"
)

// fakeProcess mirrors rubyvm's test fixture: a flat byte-addressable
// memory.ProcessHandle, built fresh here since rubyvm's is unexported.
type fakeProcess struct {
	buf [0x20000]byte
}

func (f *fakeProcess) PID() int { return 1 }

func (f *fakeProcess) Read(addr uintptr, length int) ([]byte, error) {
	if int(addr)+length > len(f.buf) {
		return nil, &memory.Error{Kind: memory.KindInvalidAddress, Addr: addr}
	}
	out := make([]byte, length)
	copy(out, f.buf[addr:int(addr)+length])
	return out, nil
}

func (f *fakeProcess) Lock() (memory.Unlocker, error)             { return nil, nil }
func (f *fakeProcess) Exists() bool                               { return true }
func (f *fakeProcess) EnumerateMaps() ([]procmap.MapRange, error) { return nil, nil }
func (f *fakeProcess) OpenBinary(m procmap.MapRange) (*binparse.BinaryInfo, error) {
	return nil, nil
}
func (f *fakeProcess) ListThreads() ([]int, error) { return []int{1}, nil }

func (f *fakeProcess) putU64(addr uintptr, v uint64) { binary.LittleEndian.PutUint64(f.buf[addr:], v) }

// buildWalkableThread lays out the minimal 2.5-family fixture needed
// for a trial Walk to succeed: one ec with a null stack (the simplest
// case Walk accepts without error, reported as a single unknown frame).
func buildWalkableThread(f *fakeProcess, layout *rubyvm.Layout, threadLoc, ecAddr uintptr) {
	f.putU64(threadLoc, ecAddr)
	// StackOffset deliberately left zero: Walk treats a null stack as
	// the degenerate "thread hasn't started running bytecode" case.
}

func TestLooksLikeThreadLocationAcceptsWalkable(t *testing.T) {
	layout, ok := rubyvm.Select(version.MustParse("2.5.0"))
	if !ok {
		t.Fatal("no layout for 2.5.0")
	}
	f := &fakeProcess{}
	// ecAddr sits above the 64KiB null-trap floor looksLikeThreadLocation
	// enforces.
	const threadLoc, ecAddr = 0x2000, 0x13000
	buildWalkableThread(f, layout, threadLoc, ecAddr)

	engine := rubyvm.NewEngine(layout, 0)
	if !looksLikeThreadLocation(f, engine, threadLoc) {
		t.Error("looksLikeThreadLocation should accept a candidate that walks successfully")
	}
}

func TestLooksLikeThreadLocationRejectsNull(t *testing.T) {
	layout, _ := rubyvm.Select(version.MustParse("2.5.0"))
	f := &fakeProcess{}
	const threadLoc = 0x2000
	// threadLoc points at a zero word: no thread pointer at all.
	engine := rubyvm.NewEngine(layout, 0)
	if looksLikeThreadLocation(f, engine, threadLoc) {
		t.Error("looksLikeThreadLocation should reject a null pointer")
	}
}

func TestLooksLikeThreadLocationRejectsLowAddress(t *testing.T) {
	layout, _ := rubyvm.Select(version.MustParse("2.5.0"))
	f := &fakeProcess{}
	const threadLoc = 0x2000
	f.putU64(threadLoc, 0x100) // below the 64KiB null-trap floor
	engine := rubyvm.NewEngine(layout, 0)
	if looksLikeThreadLocation(f, engine, threadLoc) {
		t.Error("looksLikeThreadLocation should reject a pointer inside the null-trap range")
	}
}

func TestSymbolFor(t *testing.T) {
	tests := []struct {
		v          string
		wantSymbol string
		wantChain  bool
	}{
		{"1.9.1", "ruby_current_thread", false},
		{"2.6.0", "ruby_current_execution_context_ptr", false},
		{"3.0.0", "ruby_current_vm_ptr", true},
	}
	for _, tt := range tests {
		sym, chain := symbolFor(version.MustParse(tt.v))
		if sym != tt.wantSymbol || chain != tt.wantChain {
			t.Errorf("symbolFor(%s) = (%s, %v), want (%s, %v)", tt.v, sym, chain, tt.wantSymbol, tt.wantChain)
		}
	}
}
