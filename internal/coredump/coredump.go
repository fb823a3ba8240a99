// Package coredump is a memory.ProcessHandle backed by an ELF core
// dump instead of a live process, for tests that need to replay a
// captured Ruby process without attaching to one. Grounded on the same
// debug/elf PT_LOAD-segment reading approach used elsewhere in the
// pack for post-mortem ELF inspection.
package coredump

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

// Process replays a core file as a static, already-exited process: Read
// serves bytes straight out of the dump's PT_LOAD segments, and Lock is
// a no-op since nothing is running to suspend.
type Process struct {
	core       *elf.File
	path       string
	pid        int
	executable string // path to the matching on-disk binary, for symbols
}

// Open parses path as an ELF core dump. executable is the path to the
// Ruby (or libruby) binary the dump's symbols should be resolved
// against — core dumps themselves carry no symbol table worth trusting.
func Open(path, executable string) (*Process, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("coredump: %w", err)
	}
	if f.Type != elf.ET_CORE {
		f.Close()
		return nil, fmt.Errorf("coredump: %s is not a core file", path)
	}
	pid := pidFromNotes(f)
	return &Process{core: f, path: path, pid: pid, executable: executable}, nil
}

func (p *Process) Close() error { return p.core.Close() }

func (p *Process) PID() int { return p.pid }

func (p *Process) Exists() bool { return true }

// Read serves addr out of whichever PT_LOAD segment covers it. Bytes
// past the segment's file size but within its memory size are BSS:
// zero-filled, same as the kernel would present them live.
func (p *Process) Read(addr uintptr, length int) ([]byte, error) {
	if length > memory.MaxReadSize {
		return nil, &memory.Error{Kind: memory.KindRequestTooLarge, Addr: uintptr(length)}
	}
	for _, prog := range p.core.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		start, end := prog.Vaddr, prog.Vaddr+prog.Memsz
		if uint64(addr) < start || uint64(addr)+uint64(length) > end {
			continue
		}
		buf := make([]byte, length)
		fileOff := uint64(addr) - start
		if fileOff >= prog.Filesz {
			return buf, nil // entirely in the zero-filled tail
		}
		n := length
		if fileOff+uint64(n) > prog.Filesz {
			n = int(prog.Filesz - fileOff)
		}
		if _, err := prog.ReadAt(buf[:n], int64(fileOff)); err != nil && err != io.EOF {
			return nil, &memory.Error{Kind: memory.KindInvalidAddress, Addr: addr, Err: err}
		}
		return buf, nil
	}
	return nil, &memory.Error{Kind: memory.KindInvalidAddress, Addr: addr, Err: fmt.Errorf("coredump: %#x not covered by any PT_LOAD segment", addr)}
}

// Lock is a no-op: a core dump is already as still as a process gets.
func (p *Process) Lock() (memory.Unlocker, error) { return noopUnlock{}, nil }

type noopUnlock struct{}

func (noopUnlock) Unlock() error { return nil }

// EnumerateMaps synthesizes MapRanges from the dump's PT_LOAD segments,
// standing in for /proc/<pid>/maps.
func (p *Process) EnumerateMaps() ([]procmap.MapRange, error) {
	var maps []procmap.MapRange
	for _, prog := range p.core.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		maps = append(maps, procmap.MapRange{
			Start:    prog.Vaddr,
			End:      prog.Vaddr + prog.Memsz,
			Offset:   prog.Off,
			Pathname: p.executable,
			Read:     prog.Flags&elf.PF_R != 0,
			Write:    prog.Flags&elf.PF_W != 0,
			Exec:     prog.Flags&elf.PF_X != 0,
		})
	}
	return maps, nil
}

func (p *Process) OpenBinary(m procmap.MapRange) (*binparse.BinaryInfo, error) {
	return binparse.Load(m.Pathname)
}

// ListThreads returns the single PID the core dump's PRSTATUS note
// names; core dumps in this engine's test fixtures are always
// single-threaded snapshots.
func (p *Process) ListThreads() ([]int, error) { return []int{p.pid}, nil }

// pidFromNotes scans PT_NOTE segments for an NT_PRSTATUS note and pulls
// the pid out of its fixed-offset prstatus.pr_pid field. Falls back to
// 0 (unknown) if no such note is present.
func pidFromNotes(f *elf.File) int {
	const prPidOffset = 32 // offsetof(struct elf_prstatus, pr_pid) on linux/amd64
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		data, err := io.ReadAll(prog.Open())
		if err != nil {
			continue
		}
		for off := 0; off+12 <= len(data); {
			nameSz := int(le32(data[off:]))
			descSz := int(le32(data[off+4:]))
			noteType := le32(data[off+8:])
			off += 12
			off += align4(nameSz)
			if noteType == 1 /* NT_PRSTATUS */ && off+prPidOffset+4 <= len(data) {
				return int(le32(data[off+prPidOffset:]))
			}
			off += align4(descSz)
		}
	}
	return 0
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func align4(n int) int { return (n + 3) &^ 3 }
