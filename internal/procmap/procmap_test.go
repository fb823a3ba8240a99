package procmap

import "testing"

func testMaps() []MapRange {
	return []MapRange{
		{Start: 0x1000, End: 0x2000, Pathname: "[heap]", Read: true, Write: true},
		{Start: 0x400000, End: 0x401000, Pathname: "/usr/bin/ruby", Read: true, Exec: true},
		{Start: 0x7f0000, End: 0x7f1000, Pathname: "/usr/lib/libruby-3.0.so.3.0", Read: true, Exec: true},
	}
}

func TestContains(t *testing.T) {
	m := MapRange{Start: 0x1000, End: 0x2000}
	if !m.Contains(0x1000) {
		t.Error("Contains should include Start")
	}
	if m.Contains(0x2000) {
		t.Error("Contains should exclude End")
	}
	if !m.Contains(0x1500) {
		t.Error("Contains should include an address in the middle")
	}
}

func TestContainsAddr(t *testing.T) {
	maps := testMaps()
	if !ContainsAddr(0x400500, maps) {
		t.Error("ContainsAddr should find an address inside the ruby mapping")
	}
	if ContainsAddr(0x999999, maps) {
		t.Error("ContainsAddr should reject an address outside every mapping")
	}
}

func TestFindExecutable(t *testing.T) {
	maps := testMaps()
	m, ok := FindExecutable(maps, "bin/ruby")
	if !ok || m.Start != 0x400000 {
		t.Fatalf("FindExecutable(bin/ruby) = %+v, %v", m, ok)
	}
	m, ok = FindExecutable(maps, "libruby")
	if !ok || m.Start != 0x7f0000 {
		t.Fatalf("FindExecutable(libruby) = %+v, %v", m, ok)
	}
	if _, ok := FindExecutable(maps, "nonexistent"); ok {
		t.Error("FindExecutable should report false for no match")
	}
}

func TestHeap(t *testing.T) {
	maps := testMaps()
	m, ok := Heap(maps)
	if !ok || m.Start != 0x1000 {
		t.Fatalf("Heap() = %+v, %v", m, ok)
	}

	if _, ok := Heap(maps[1:]); ok {
		t.Error("Heap should report false when no [heap] mapping exists")
	}
}
