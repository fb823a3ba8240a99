package binparse

import (
	"debug/elf"
	"sort"
	"testing"

	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

// newTestBinary builds a BinaryInfo in-memory, without needing a real
// ELF file on disk — same symbol table and PT_LOAD shape addr2func's
// original fib-nopie/fib-pie fixtures had, just constructed directly.
func newTestBinary(pie bool) *BinaryInfo {
	// PIE binaries link near a small base address (vaddr == file offset);
	// non-PIE binaries link at a fixed high one. Symbol values reflect
	// whichever the binary was actually linked at.
	base := uint64(0x401000)
	if pie {
		base = 0x1000
	}
	symbols := []elf.Symbol{
		{Name: "frame_dummy", Value: base + 0x120},
		{Name: "fibNaive", Value: base + 0x126},
		{Name: "main", Value: base + 0x15a},
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Value < symbols[j].Value })
	loads := []elf.ProgHeader{{Type: elf.PT_LOAD, Off: 0x1000, Vaddr: base, Filesz: 0x1ed, Memsz: 0x1ed}}
	return &BinaryInfo{Path: "test", symbols: symbols, loads: loads}
}

func TestFuncForAddrNoPIE(t *testing.T) {
	b := newTestBinary(false)
	m := procmap.MapRange{Start: 0x401000, Offset: 0x1000}

	tests := []struct {
		addr uint64
		want string
		ok   bool
	}{
		{0x401126 + 6, "fibNaive", true},
		{0x40115a, "main", true},
		{123, "", false},
	}
	for _, tt := range tests {
		got, ok := b.FuncForAddr(m, tt.addr)
		if ok != tt.ok || got != tt.want {
			t.Errorf("FuncForAddr(%#x) = %q, %v; want %q, %v", tt.addr, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFuncForAddrPIE(t *testing.T) {
	b := newTestBinary(true)
	const memoryStart = 94862440955904
	m := procmap.MapRange{Start: memoryStart, Offset: 0x1000}

	got, ok := b.FuncForAddr(m, memoryStart+0x15a)
	if !ok || got != "main" {
		t.Errorf("FuncForAddr(main) = %q, %v", got, ok)
	}

	if _, ok := b.FuncForAddr(m, 123); ok {
		t.Error("FuncForAddr(123) should miss: address before the mapping start")
	}
}

func TestBias(t *testing.T) {
	b := newTestBinary(true)
	const memoryStart = 94862440955904
	m := procmap.MapRange{Start: memoryStart, Offset: 0x1000}
	if got, want := b.Bias(m), uint64(memoryStart-0x1000); got != want {
		t.Errorf("Bias() = %#x, want %#x", got, want)
	}
}
