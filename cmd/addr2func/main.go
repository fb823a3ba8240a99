// Program addr2func resolves a single runtime address against an ELF
// binary's symbol table — the standalone diagnostic this engine's
// address-to-name lookup (internal/binparse) was built from.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

func main() {
	path := flag.String("path", "", "path to the ELF file")
	sampledAddr := flag.Uint64("addr", 0, "sampled address to resolve")
	memoryStart := flag.Uint64("memory-start", 0x401000, "virtual address where the segment was mapped")
	fileOffset := flag.Uint64("file-offset", 0x1000, "file offset of the mapped segment")
	flag.Parse()

	bin, err := binparse.Load(*path)
	if err != nil {
		log.Fatal(err)
	}

	// A single synthesized mapping standing in for the one line of
	// /proc/<pid>/maps a live process would actually supply.
	m := procmap.MapRange{Start: *memoryStart, Offset: *fileOffset}

	name, ok := bin.FuncForAddr(m, *sampledAddr)
	if !ok {
		fmt.Println("?")
		return
	}
	fmt.Println(name)
}
