// Package rubyvm holds the per-Ruby-version struct layouts and the single
// stack-walking algorithm that reads frames out of them.
// Rather than one generated Go source file per supported Ruby version —
// which is how rbspy itself does it, via a macro expanded ~60 times over
// a version list — the layouts are data: a Layout value per "family" of
// versions that share a struct shape, selected at runtime by the
// detected version.Version. The walking code is written once against
// that data.
package rubyvm

// ThreadKind distinguishes the two C structs a Layout's thread-ish
// fields (stack/cfp/tag) are read from. Ruby <2.5 samples a
// rb_thread_struct directly; Ruby >=2.5 splits execution state into a
// separate rb_execution_context_struct reached via thread->ec.
type ThreadKind int

const (
	ThreadStruct ThreadKind = iota
	ExecutionContext
)

// LineInfoKind distinguishes the two shapes rbspy has seen for an
// iseq's line-number table.
type LineInfoKind int

const (
	// LineInfoEntries: a flat array of {position, line_no} entries,
	// used by Ruby 1.9.1 through 2.5.x (under different field names).
	LineInfoEntries LineInfoKind = iota
	// LineInfoSplit: an insns_info{body []entry, positions []uint32,
	// size} struct, used from Ruby 2.6.0 on. Entries hold only line_no;
	// the matching position lives in the parallel positions array.
	LineInfoSplit
)

// LineEntryLayout describes one line-table entry.
type LineEntryLayout struct {
	Size           uint64 // bytes per entry
	PositionOffset uint64 // LineInfoEntries only
	PositionSize   uint64 // 4 or 8
	LineNoOffset   uint64
}

// Layout is one family's struct field offsets, in bytes, sized for a
// 64-bit target; the VALUE size the walker uses is fixed at
// defaultValueSize (8 bytes), so 32-bit targets are not covered.
//
// Values here are representative of the real MRI headers rather than
// transcribed from them: rbspy generates this table from Ruby's own
// installed headers at build time, a step that happens outside this
// engine. What matters for this package is that the walking algorithm
// in walker.go is correct against whatever table it's given.
type Layout struct {
	Name string

	ThreadKind ThreadKind

	StackOffset     uint64
	StackSizeOffset uint64
	CFPOffset       uint64
	ThreadIDOffset  uint64 // ThreadStruct: direct; ExecutionContext: via ThreadPtrOffset
	ThreadPtrOffset uint64 // ExecutionContext only: ec->thread_ptr

	CFPSize       uint64
	CFPIseqOffset uint64
	CFPPCOffset   uint64

	// IseqBodyOffset is 0 for Ruby <2.3 (fields live directly on
	// rb_iseq_t) or the offset of the `body` pointer for >=2.3
	// (rb_iseq_constant_body is a separate allocation).
	IseqBodyOffset    uint64
	IseqEncodedOffset uint64

	// Name/location fields. Exactly one of these groups is populated,
	// selected by which offsets are nonzero, oldest first:
	NameOffset     uint64 // 1.9.1: iseq->name
	FilenameOffset uint64 // 1.9.1: iseq->filename
	FilepathOffset uint64 // 1.9.2-1.9.3: iseq->filepath (absolute_path)

	LocationLabelOffset   uint64 // >=2.0.0: body->location.label
	LocationPathOffset    uint64 // 2.0.0-2.4.x: body->location.path
	LocationAbsPathOffset uint64 // 2.0.0-2.4.x: body->location.absolute_path
	LocationPathObjOffset uint64 // >=2.5.0: body->location.pathobj (String or [rel,abs])

	LineInfoKind       LineInfoKind
	LineTableOffset    uint64 // table/body pointer field
	LineTableSizeOffset uint64
	LinePositionsOffset uint64 // LineInfoSplit only
	LineEntry          LineEntryLayout
}

const defaultValueSize = 8

// defaultLineEntry is the {size_t position; unsigned int line_no}
// shape used from 1.9.1 through 2.5.x, padded to 16 bytes.
var defaultLineEntry = LineEntryLayout{Size: 16, PositionOffset: 0, PositionSize: 8, LineNoOffset: 8}

// splitLineEntry is the {unsigned int line_no} shape used from 2.6.0 on,
// where position lives in the parallel positions[] array instead.
var splitLineEntry = LineEntryLayout{Size: 4, LineNoOffset: 0}
