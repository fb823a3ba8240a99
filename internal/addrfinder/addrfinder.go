// Package addrfinder locates the address the stack walker dereferences
// to find the currently running thread. Most Ruby builds export a
// symbol that gives this directly; stripped binaries fall back to
// scanning the BSS section for a pointer that looks like one, the same
// two-tier strategy rbspy's address_finder.rs uses.
package addrfinder

import (
	"fmt"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
	"github.com/rbspy/rbspy-sub000/internal/version"
)

// Ractor-related offsets used only for Ruby >=3.0's VM->ractor->running_ec
// chain. Like rubyvm.Layout's offsets, these stand in for a build-time
// generated table rather than claiming bit-exact fidelity
// to any specific Ruby release.
const (
	vmRactorOffset        = 0x350
	ractorRunningECOffset = 0x10
)

var (
	v25 = version.MustParse("2.5.0")
	v27 = version.MustParse("2.7.0")
	v30 = version.MustParse("3.0.0")
)

// symbolFor returns the C symbol that carries the current-thread (or,
// from 2.5.0, current-execution-context) pointer for v. Ruby >=3.0 has
// no such simple global; Find falls back to the VM->ractor chain for
// it instead (see findViaRactorChain).
func symbolFor(v version.Version) (symbol string, viaRactorChain bool) {
	switch {
	case v.LT(v25):
		return "ruby_current_thread", false
	case v.LT(v30):
		return "ruby_current_execution_context_ptr", false
	default:
		return "ruby_current_vm_ptr", true
	}
}

// Find resolves the address that, read once, gives the pointer to the
// currently running thread or execution context — what rubyvm.Walk's
// currentThreadAddrLocation argument expects.
func Find(h memory.ProcessHandle, bin *binparse.BinaryInfo, m procmap.MapRange, v version.Version) (uintptr, error) {
	symbol, viaRactorChain := symbolFor(v)
	addr, ok := bin.AddrOf(m, symbol)
	if !ok {
		return scanBSSForThreadLocation(h, bin, m, v)
	}
	if !viaRactorChain {
		return uintptr(addr), nil
	}
	return findViaRactorChain(h, uintptr(addr))
}

// findViaRactorChain dereferences ruby_current_vm_ptr down to the
// currently running ractor's running_ec field, and returns that field's
// address (not its value — the caller dereferences it exactly once,
// same contract as the direct-symbol case).
func findViaRactorChain(h memory.ProcessHandle, vmPtrAddr uintptr) (uintptr, error) {
	vmAddr, err := memory.ReadUintptr(h, vmPtrAddr)
	if err != nil {
		return 0, fmt.Errorf("addrfinder: read ruby_current_vm_ptr: %w", err)
	}
	if vmAddr == 0 {
		return 0, fmt.Errorf("addrfinder: ruby_current_vm_ptr is null")
	}
	ractorAddr, err := memory.ReadUintptr(h, vmAddr+vmRactorOffset)
	if err != nil {
		return 0, fmt.Errorf("addrfinder: read vm->ractor: %w", err)
	}
	if ractorAddr == 0 {
		return 0, fmt.Errorf("addrfinder: vm->ractor is null")
	}
	return ractorAddr + ractorRunningECOffset, nil
}

// GlobalSymbolsAddr resolves the interned-symbol table: ruby_global_symbols
// for Ruby >=2.7.0, else global_symbols. Not currently read by the
// walker — C-method frames are reported as an unknown-function
// sentinel rather than resolved by name — but kept resolvable here for
// future diagnostic use (e.g. `rbspy inspect`).
func GlobalSymbolsAddr(bin *binparse.BinaryInfo, m procmap.MapRange, v version.Version) (uintptr, bool) {
	symbol := "global_symbols"
	if v.GTE(v27) {
		symbol = "ruby_global_symbols"
	}
	addr, ok := bin.AddrOf(m, symbol)
	return uintptr(addr), ok
}

// StringClassAddr resolves the runtime address of the rb_cString global,
// which holds the String class object rubyvm.Engine needs to
// discriminate an iseq's pathobj field (>=2.5.0 only).
func StringClassAddr(bin *binparse.BinaryInfo, m procmap.MapRange) (uint64, bool) {
	addr, ok := bin.AddrOf(m, "rb_cString")
	return addr, ok
}
