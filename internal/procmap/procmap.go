// Package procmap enumerates a process's memory map and its descendant
// PIDs: map resolution (the symbol table parsing itself lives in
// internal/binparse) and descendant-process discovery.
package procmap

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"
)

// MapRange is one row of the OS memory map: a [Start, End) virtual
// address range, its permissions, and the file it's backed by (if any).
// It mirrors the fields profile.Mapping already carries — we don't
// reinvent a parser, we reuse google/pprof's proc-maps parser and add
// the read/write/execute bits FindExecutable filters on.
type MapRange struct {
	Start, End uint64
	Offset     uint64
	Pathname   string
	Read       bool
	Write      bool
	Exec       bool
}

// Contains reports whether addr falls within [Start, End).
func (m MapRange) Contains(addr uint64) bool {
	return addr >= m.Start && addr < m.End
}

// ContainsAddr reports whether addr falls in any of maps — the portable
// "looks like a valid pointer" check the BSS scan fallback needs.
func ContainsAddr(addr uint64, maps []MapRange) bool {
	for _, m := range maps {
		if m.Contains(addr) {
			return true
		}
	}
	return false
}

// Enumerate reads /proc/<pid>/maps and returns its executable mapped
// regions. profile.ParseProcMaps skips mappings without the execute
// permission, so non-executable regions such as [heap] or a binary's
// data/BSS mapping are not in the result.
func Enumerate(pid int) ([]MapRange, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pprofMaps, err := profile.ParseProcMaps(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// profile.ParseProcMaps discards the permission bits MapRange
	// carries, so re-scan the same file for those;
	// it's cheap and keeps the funnel through one well-tested parser.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	perms := make(map[uint64]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err := strconv.ParseUint(bounds[0], 16, 64)
		if err != nil {
			continue
		}
		perms[start] = fields[1]
	}

	out := make([]MapRange, 0, len(pprofMaps))
	for _, m := range pprofMaps {
		p := perms[m.Start]
		out = append(out, MapRange{
			Start:    m.Start,
			End:      m.Limit,
			Offset:   m.Offset,
			Pathname: m.File,
			Read:     strings.Contains(p, "r"),
			Write:    strings.Contains(p, "w"),
			Exec:     strings.Contains(p, "x"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// FindExecutable returns the first executable map whose backing path
// contains substr (e.g. "bin/ruby" or "libruby").
func FindExecutable(maps []MapRange, substr string) (MapRange, bool) {
	for _, m := range maps {
		if m.Exec && strings.Contains(m.Pathname, substr) {
			return m, true
		}
	}
	return MapRange{}, false
}

// Heap returns the anonymous [heap] mapping, if the OS reports one.
func Heap(maps []MapRange) (MapRange, bool) {
	for _, m := range maps {
		if m.Pathname == "[heap]" {
			return m, true
		}
	}
	return MapRange{}, false
}
