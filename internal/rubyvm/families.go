package rubyvm

// The seven layouts below correspond to the version families that
// share a struct shape: 1.9.1; 1.9.2-1.9.3; 2.0.0-2.2.x; 2.3.0-2.4.x;
// 2.5.x; 2.6.0-2.7.x; >=3.0.0. Each is a handwritten stand-in for what
// rbspy's real build step generates from Ruby's own headers — see
// layout.go's doc comment.
//
// Versions within a family are treated as sharing every offset that
// matters to the walker, which is exactly the property that makes a
// shared Layout value correct for all of them.

var layout191 = &Layout{
	Name:              "1.9.1",
	ThreadKind:        ThreadStruct,
	StackOffset:       0x38,
	StackSizeOffset:   0x40,
	CFPOffset:         0x48,
	ThreadIDOffset:    0x18,
	CFPSize:           0x30,
	CFPIseqOffset:     0x08,
	CFPPCOffset:       0x00,
	IseqBodyOffset:    0, // fields live directly on rb_iseq_struct
	IseqEncodedOffset: 0x10,
	NameOffset:        0x18,
	FilenameOffset:    0x20,
	LineInfoKind:        LineInfoEntries,
	LineTableOffset:     0x50,
	LineTableSizeOffset: 0x58,
	LineEntry:           defaultLineEntry,
}

var layout192 = &Layout{
	Name:              "1.9.2",
	ThreadKind:        ThreadStruct,
	StackOffset:       0x38,
	StackSizeOffset:   0x40,
	CFPOffset:         0x48,
	ThreadIDOffset:    0x18,
	CFPSize:           0x30,
	CFPIseqOffset:     0x08,
	CFPPCOffset:       0x00,
	IseqBodyOffset:    0,
	IseqEncodedOffset: 0x10,
	NameOffset:        0x18,
	FilenameOffset:    0x20,
	FilepathOffset:    0x28,
	LineInfoKind:        LineInfoEntries,
	LineTableOffset:     0x58,
	LineTableSizeOffset: 0x60,
	LineEntry:           defaultLineEntry,
}

var layout20 = &Layout{
	Name:                  "2.0.0",
	ThreadKind:            ThreadStruct,
	StackOffset:           0x40,
	StackSizeOffset:       0x48,
	CFPOffset:             0x50,
	ThreadIDOffset:        0x20,
	CFPSize:               0x38,
	CFPIseqOffset:         0x08,
	CFPPCOffset:           0x00,
	IseqBodyOffset:        0, // still direct on rb_iseq_t in 2.0-2.2
	IseqEncodedOffset:     0x18,
	LocationLabelOffset:   0x30,
	LocationPathOffset:    0x38,
	LocationAbsPathOffset: 0x40,
	LineInfoKind:          LineInfoEntries,
	LineTableOffset:       0x60,
	LineTableSizeOffset:   0x68,
	LineEntry:             defaultLineEntry,
}

var layout23 = &Layout{
	Name:                  "2.3.0",
	ThreadKind:            ThreadStruct,
	StackOffset:           0x40,
	StackSizeOffset:       0x48,
	CFPOffset:             0x50,
	ThreadIDOffset:        0x20,
	CFPSize:               0x38,
	CFPIseqOffset:         0x08,
	CFPPCOffset:           0x00,
	IseqBodyOffset:        0x10, // rb_iseq_constant_body split out in 2.3
	IseqEncodedOffset:     0x08,
	LocationLabelOffset:   0x20,
	LocationPathOffset:    0x28,
	LocationAbsPathOffset: 0x30,
	LineInfoKind:          LineInfoEntries,
	LineTableOffset:       0x50,
	LineTableSizeOffset:   0x58,
	LineEntry:             defaultLineEntry,
}

var layout25 = &Layout{
	Name:                  "2.5.0",
	ThreadKind:            ExecutionContext,
	StackOffset:           0x18,
	StackSizeOffset:       0x20,
	CFPOffset:             0x28,
	ThreadPtrOffset:       0x58,
	ThreadIDOffset:        0x20,
	CFPSize:               0x38,
	CFPIseqOffset:         0x08,
	CFPPCOffset:           0x00,
	IseqBodyOffset:        0x10,
	IseqEncodedOffset:     0x08,
	LocationLabelOffset:   0x20,
	LocationPathObjOffset: 0x28,
	LineInfoKind:          LineInfoEntries, // insns_info, same flat shape under a new name
	LineTableOffset:       0x50,
	LineTableSizeOffset:   0x58,
	LineEntry:             defaultLineEntry,
}

var layout26 = &Layout{
	Name:                  "2.6.0",
	ThreadKind:            ExecutionContext,
	StackOffset:           0x18,
	StackSizeOffset:       0x20,
	CFPOffset:             0x28,
	ThreadPtrOffset:       0x58,
	ThreadIDOffset:        0x20,
	CFPSize:               0x38,
	CFPIseqOffset:         0x08,
	CFPPCOffset:           0x00,
	IseqBodyOffset:        0x10,
	IseqEncodedOffset:     0x08,
	LocationLabelOffset:   0x20,
	LocationPathObjOffset: 0x28,
	LineInfoKind:          LineInfoSplit, // insns_info{body,positions,size}
	LineTableOffset:       0x50,
	LineTableSizeOffset:   0x60,
	LinePositionsOffset:   0x58,
	LineEntry:             splitLineEntry,
}

var layout30 = &Layout{
	Name:                  "3.0.0",
	ThreadKind:            ExecutionContext,
	StackOffset:           0x18,
	StackSizeOffset:       0x20,
	CFPOffset:             0x28,
	ThreadPtrOffset:       0x60, // ec->thread_ptr moved slightly with Ractor fields
	ThreadIDOffset:        0x20,
	CFPSize:               0x38,
	CFPIseqOffset:         0x08,
	CFPPCOffset:           0x00,
	IseqBodyOffset:        0x10,
	IseqEncodedOffset:     0x08,
	LocationLabelOffset:   0x20,
	LocationPathObjOffset: 0x28,
	LineInfoKind:          LineInfoSplit,
	LineTableOffset:       0x50,
	LineTableSizeOffset:   0x60,
	LinePositionsOffset:   0x58,
	LineEntry:             splitLineEntry,
}
