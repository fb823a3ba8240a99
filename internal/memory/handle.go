// Package memory implements byte-level reads of a foreign process's
// address space, process suspension, and the ProcessHandle capability
// other packages program against.
package memory

import (
	"encoding/binary"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

// Unlocker releases a suspend lock acquired by ProcessHandle.Lock. It
// must be safe to call exactly once, including from a defer that runs
// during a panic.
type Unlocker interface {
	Unlock() error
}

// ProcessHandle is the capability contract every operation the rest of
// the engine needs against an attached target goes through. It's
// intentionally narrow so a test harness can satisfy it with an ELF
// core dump instead of a live OS process — see internal/coredump.
type ProcessHandle interface {
	PID() int

	// Read copies length bytes starting at addr out of the target.
	// length is capped at MaxReadSize.
	Read(addr uintptr, length int) ([]byte, error)

	// Lock performs a best-effort stop-the-world on the target. The
	// returned Unlocker must be released on every exit path.
	Lock() (Unlocker, error)

	// Exists reports whether the target process is still alive.
	Exists() bool

	// EnumerateMaps returns a fresh snapshot of the target's memory map.
	EnumerateMaps() ([]procmap.MapRange, error)

	// OpenBinary parses (or fetches from cache) the on-disk file backing
	// m, so its symbol table and BSS section can be resolved.
	OpenBinary(m procmap.MapRange) (*binparse.BinaryInfo, error)

	// ListThreads returns the OS thread ids of the target.
	ListThreads() ([]int, error)
}

// ReadUint64 reads a little-endian 8-byte value at addr — the building
// block every struct-field read in internal/rubyvm is made of.
func ReadUint64(h ProcessHandle, addr uintptr) (uint64, error) {
	b, err := h.Read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadUint32 reads a 4-byte value at addr.
func ReadUint32(h ProcessHandle, addr uintptr) (uint32, error) {
	b, err := h.Read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUintptr reads a pointer-sized value at addr.
func ReadUintptr(h ProcessHandle, addr uintptr) (uintptr, error) {
	v, err := ReadUint64(h, addr)
	return uintptr(v), err
}

// ReadCString reads up to max bytes at addr and truncates at the first
// NUL.
func ReadCString(h ProcessHandle, addr uintptr, max int) (string, error) {
	b, err := h.Read(addr, max)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}
