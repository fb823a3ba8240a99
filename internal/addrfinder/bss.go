package addrfinder

import (
	"fmt"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
	"github.com/rbspy/rbspy-sub000/internal/rubyvm"
	"github.com/rbspy/rbspy-sub000/internal/version"
)

// scanBSSForThreadLocation is the fallback for stripped binaries:
// walk the main binary's BSS section word by word,
// treat each word as a candidate address, and keep the first one that
// plausibly points at a live thread — confirmed by actually attempting
// a stack walk against it rather than just shape-checking the bytes
// (matches rbspy's own check_thread_addresses, which validates the
// same way).
func scanBSSForThreadLocation(h memory.ProcessHandle, bin *binparse.BinaryInfo, m procmap.MapRange, v version.Version) (uintptr, error) {
	layout, ok := rubyvm.Select(v)
	if !ok {
		return 0, fmt.Errorf("addrfinder: no struct layout known for Ruby %s", v)
	}

	bssAddr, bssSize, ok := bin.RuntimeBSS(m)
	if !ok || bssSize == 0 {
		return 0, fmt.Errorf("addrfinder: binary %s has no .bss to scan", bin.Path)
	}

	engine := rubyvm.NewEngine(layout, 0)
	const wordSize = 8
	for off := uint64(0); off+wordSize <= bssSize; off += wordSize {
		candidate := uintptr(bssAddr + off)
		if looksLikeThreadLocation(h, engine, candidate) {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("addrfinder: BSS scan of %s found no plausible thread address", bin.Path)
}

// looksLikeThreadLocation applies a cheap shape check before paying for
// a full trial walk: the candidate word must itself look like a
// pointer into the process's address space, not scanner noise.
func looksLikeThreadLocation(h memory.ProcessHandle, engine *rubyvm.Engine, candidate uintptr) bool {
	threadAddr, err := memory.ReadUintptr(h, candidate)
	if err != nil || threadAddr == 0 {
		return false
	}
	// A real thread/ec pointer lands in the heap, never in the first
	// 64KiB of address space reserved for null-pointer traps.
	if threadAddr < 0x10000 {
		return false
	}

	trace, err := engine.Walk(h, candidate, time.Time{})
	if err != nil {
		return false
	}
	return len(trace.Trace) > 0
}
