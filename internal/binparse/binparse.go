// Package binparse loads the on-disk Ruby executable or libruby shared
// object for a mapped region and indexes its symbol table and BSS
// section: ELF symtab lookup plus PIE-aware address translation.
package binparse

import (
	"debug/elf"
	"fmt"
	"sort"
	"sync"

	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

// BinaryInfo is the parsed, symbol-indexed form of one on-disk binary.
// It's immutable after Load and safe to cache across samples keyed by
// (path, mtime).
type BinaryInfo struct {
	Path string

	// symbols is sorted by Value for binary search, like addr2func's
	// symbolizer.
	symbols []elf.Symbol
	// loads are the PT_LOAD program headers, needed to compute the
	// load bias for a given runtime mapping.
	loads []elf.ProgHeader

	BSSAddr uint64
	BSSSize uint64

	ByteOrder byteOrder
}

type byteOrder int

const (
	LittleEndian byteOrder = iota
	BigEndian
)

// cache is the (path, mtime)-keyed BinaryInfo cache Load uses to avoid
// re-parsing the same on-disk file across repeated samples.
var cache = struct {
	mu sync.Mutex
	m  map[cacheKey]*BinaryInfo
}{m: make(map[cacheKey]*BinaryInfo)}

type cacheKey struct {
	path  string
	mtime int64
}

// Load parses the ELF file at path, reusing a cached BinaryInfo if path's
// mtime hasn't changed since it was last parsed.
func Load(path string) (*BinaryInfo, error) {
	mtime, err := fileMtime(path)
	if err != nil {
		return nil, err
	}
	key := cacheKey{path: path, mtime: mtime}

	cache.mu.Lock()
	if bi, ok := cache.m[key]; ok {
		cache.mu.Unlock()
		return bi, nil
	}
	cache.mu.Unlock()

	bi, err := loadELF(path)
	if err != nil {
		return nil, err
	}

	cache.mu.Lock()
	cache.m[key] = bi
	cache.mu.Unlock()
	return bi, nil
}

func loadELF(path string) (*BinaryInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF %s: %w", path, err)
	}
	defer f.Close()

	symbols, err := f.Symbols()
	if err != nil {
		// Stripped binaries have no .symtab; that's expected, not
		// fatal — callers fall back to BSS scanning.
		symbols = nil
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Value < symbols[j].Value })

	var loads []elf.ProgHeader
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			loads = append(loads, p.ProgHeader)
		}
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("%s: no PT_LOAD segments found", path)
	}

	order := LittleEndian
	if f.ByteOrder.String() == "BigEndian" {
		order = BigEndian
	}

	bi := &BinaryInfo{
		Path:      path,
		symbols:   symbols,
		loads:     loads,
		ByteOrder: order,
	}

	if sec := f.Section(".bss"); sec != nil {
		bi.BSSAddr = sec.Addr
		bi.BSSSize = sec.Size
	}

	return bi, nil
}

// Symbol returns the file-relative virtual address of name, or false if
// the binary has no such symbol (most commonly: stripped).
func (b *BinaryInfo) Symbol(name string) (uint64, bool) {
	for _, s := range b.symbols {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

// Bias returns the load bias for a runtime mapping m of this binary: the
// constant to add to any file-relative virtual address (a symbol value,
// or BSSAddr) to get the address it's actually mapped at in the target
// process. This is `map.range_start - load_header.vaddr`.
func (b *BinaryInfo) Bias(m procmap.MapRange) uint64 {
	seg := b.loadForOffset(m.Offset)
	if seg == nil && len(b.loads) > 0 {
		seg = &b.loads[0]
	}
	if seg == nil {
		return m.Start
	}
	return m.Start - seg.Vaddr
}

func (b *BinaryInfo) loadForOffset(fileOffset uint64) *elf.ProgHeader {
	for i := range b.loads {
		if b.loads[i].Off == fileOffset {
			return &b.loads[i]
		}
	}
	// Fall back to the segment whose file range contains the offset —
	// /proc/pid/maps sometimes reports an offset that isn't exactly a
	// segment's Off (e.g. a sub-page mapping).
	for i := range b.loads {
		l := &b.loads[i]
		if fileOffset >= l.Off && fileOffset < l.Off+l.Filesz {
			return l
		}
	}
	return nil
}

// AddrOf resolves name to a runtime address for the given mapping, the
// combination of Symbol + Bias that address finding actually wants.
func (b *BinaryInfo) AddrOf(m procmap.MapRange, name string) (uint64, bool) {
	v, ok := b.Symbol(name)
	if !ok {
		return 0, false
	}
	return b.Bias(m) + v, true
}

// FuncForAddr resolves a runtime address in mapping m to the name of
// the nearest symbol at or below it, the same "closest preceding
// symbol" search addr2func's original symbolizer did. Returns false if
// the binary has no symbol table (stripped) or addr falls before the
// first symbol.
func (b *BinaryInfo) FuncForAddr(m procmap.MapRange, addr uint64) (string, bool) {
	if len(b.symbols) == 0 || addr < m.Start {
		return "", false
	}
	fileAddr := addr - b.Bias(m)

	i := sort.Search(len(b.symbols), func(i int) bool { return b.symbols[i].Value > fileAddr })
	if i == 0 {
		return "", false
	}
	return b.symbols[i-1].Name, true
}

// RuntimeBSS resolves the BSS section to a runtime [addr, addr+size)
// range for the given mapping.
func (b *BinaryInfo) RuntimeBSS(m procmap.MapRange) (addr, size uint64, ok bool) {
	if b.BSSSize == 0 {
		return 0, 0, false
	}
	return b.Bias(m) + b.BSSAddr, b.BSSSize, true
}
