package version

import (
	"fmt"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

// Symbol is the C string symbol that carries the running Ruby's version.
const Symbol = "ruby_version"

// maxVersionStringLen mirrors rbspy's `[c_char; 15]` read: exactly long
// enough for "2.147483647.99\0", short enough to stay a single cheap
// read.
const maxVersionStringLen = 15

// Read locates and decodes the `ruby_version` symbol in the given
// binary, mapped at m, and parses it.
func Read(h memory.ProcessHandle, bin *binparse.BinaryInfo, m procmap.MapRange) (Version, error) {
	addr, ok := bin.AddrOf(m, Symbol)
	if !ok {
		return Version{}, fmt.Errorf("version: symbol %q not found in %s", Symbol, bin.Path)
	}
	s, err := memory.ReadCString(h, uintptr(addr), maxVersionStringLen)
	if err != nil {
		return Version{}, fmt.Errorf("version: read %s: %w", Symbol, err)
	}
	return Parse(s)
}
