package addrfinder

import (
	"testing"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
	"github.com/rbspy/rbspy-sub000/internal/version"
)

// TestGlobalSymbolsAddrMissingSymbol just exercises both sides of the
// version gate against a binary with no symbol table at all, checking
// neither branch panics and both correctly report "not found".
func TestGlobalSymbolsAddrMissingSymbol(t *testing.T) {
	bin := &binparse.BinaryInfo{}
	m := procmap.MapRange{}

	if _, ok := GlobalSymbolsAddr(bin, m, version.MustParse("2.6.0")); ok {
		t.Error("GlobalSymbolsAddr should report false against a symbol-less binary (pre-2.7.0 branch)")
	}
	if _, ok := GlobalSymbolsAddr(bin, m, version.MustParse("2.7.0")); ok {
		t.Error("GlobalSymbolsAddr should report false against a symbol-less binary (>=2.7.0 branch)")
	}
}
