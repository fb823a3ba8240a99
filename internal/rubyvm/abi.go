package rubyvm

import (
	"unicode/utf8"

	"github.com/rbspy/rbspy-sub000/internal/memory"
)

// rbasicABI is RBasic's layout: every Ruby heap object (RString, RArray,
// ...) starts with `VALUE flags; VALUE klass;`. This hasn't moved across
// the Ruby versions rbspy supports, so unlike the per-version Layout
// table it's a single constant, not something dispatched on version.
type rbasicABI struct {
	FlagsOffset uint64
	KlassOffset uint64
}

var rbasic = rbasicABI{FlagsOffset: 0, KlassOffset: 8}

// embedFlagBit is bit 13 of RBasic.flags: set means the object packs its
// payload inline in the struct, clear means it's heap-allocated and the
// struct instead holds a pointer+length. calls this out for
// RString; RArray uses the same scheme (a different bit position would
// require a second ABI constant, but current MRI shares bit 13 for both
// embed flags via RARRAY_EMBED_FLAG / RSTRING_EMBED_LEN ranges aliasing
// the same VALUE flags word).
const embedFlagBit = 13

// rstringABI is RString's post-RBasic union: either an inline char[] or
// a {long len; char *ptr} heap record.
type rstringABI struct {
	// InlineOffset is where the inline byte array starts.
	InlineOffset uint64
	// HeapLenOffset/HeapPtrOffset are relative to the same union start.
	HeapLenOffset uint64
	HeapPtrOffset uint64
}

var rstring = rstringABI{InlineOffset: 16, HeapLenOffset: 16, HeapPtrOffset: 24}

// rarrayABI is RArray's post-RBasic union: either up to 3 inline VALUEs
// or a {long len; VALUE *ptr; ...} heap record, mirroring RString's
// split. rbspy's own TODO assumes arrays are always inline; we resolve
// that by checking the embed flag instead of assuming.
type rarrayABI struct {
	InlineOffset uint64
	HeapLenOffset uint64
	HeapPtrOffset uint64
}

var rarray = rarrayABI{InlineOffset: 16, HeapLenOffset: 16, HeapPtrOffset: 24}

// isEmbedded reports whether flags has the embed bit set.
func isEmbedded(flags uint64) bool {
	return flags&(1<<embedFlagBit) != 0
}

// readRubyString decodes an RString at addr into a Go string, per
// "String decoding (RString)" rules.
func readRubyString(h memory.ProcessHandle, addr uintptr) (string, error) {
	flags, err := memory.ReadUint64(h, addr+uintptr(rbasic.FlagsOffset))
	if err != nil {
		return "", err
	}

	var raw []byte
	if isEmbedded(flags) {
		// Embedded strings are NUL-terminated inline; read generously
		// and truncate, same approach as the C-string reads elsewhere.
		raw, err = h.Read(addr+uintptr(rstring.InlineOffset), 256)
		if err != nil {
			return "", err
		}
		if i := indexZero(raw); i >= 0 {
			raw = raw[:i]
		}
	} else {
		length, err := memory.ReadUint64(h, addr+uintptr(rstring.HeapLenOffset))
		if err != nil {
			return "", err
		}
		ptr, err := memory.ReadUintptr(h, addr+uintptr(rstring.HeapPtrOffset))
		if err != nil {
			return "", err
		}
		raw, err = h.Read(ptr, int(length))
		if err != nil {
			return "", err
		}
	}

	if !utf8.Valid(raw) {
		return "", memory.InvalidUTF8String
	}
	return string(raw), nil
}

// readPathObject decodes the iseq path field for Ruby >= 2.5.0, which is
// either a String (the old shape) or a 2-element Array of Strings
// [relative_path, absolute_path] (the new shape). Discrimination is by
// comparing the object's class pointer against a known String object's
// class pointer
func readPathObject(h memory.ProcessHandle, addr uintptr, stringClass uint64) (relPath, absPath string, err error) {
	klass, err := memory.ReadUint64(h, addr+uintptr(rbasic.KlassOffset))
	if err != nil {
		return "", "", err
	}
	if klass == stringClass {
		s, err := readRubyString(h, addr)
		if err != nil {
			return "", "", err
		}
		return s, s, nil
	}

	// It's an RArray of exactly two Strings.
	flags, err := memory.ReadUint64(h, addr+uintptr(rbasic.FlagsOffset))
	if err != nil {
		return "", "", err
	}

	var elemAddrs [2]uintptr
	if isEmbedded(flags) {
		for i := range elemAddrs {
			elemAddrs[i], err = memory.ReadUintptr(h, addr+uintptr(rarray.InlineOffset)+uintptr(i*8))
			if err != nil {
				return "", "", err
			}
		}
	} else {
		ptr, err := memory.ReadUintptr(h, addr+uintptr(rarray.HeapPtrOffset))
		if err != nil {
			return "", "", err
		}
		for i := range elemAddrs {
			elemAddrs[i], err = memory.ReadUintptr(h, ptr+uintptr(i*8))
			if err != nil {
				return "", "", err
			}
		}
	}

	relPath, err = readRubyString(h, elemAddrs[0])
	if err != nil {
		return "", "", err
	}
	absPath, err = readRubyString(h, elemAddrs[1])
	if err != nil {
		return "", "", err
	}
	return relPath, absPath, nil
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

