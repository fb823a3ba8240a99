package rubyvm

import (
	"fmt"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

// Engine pairs an immutable, shared Layout with the one piece of
// per-process state decoding a frame needs: the address of the String
// class object, used to discriminate the iseq path field's two possible
// shapes. A Layout value is shared across every process of the same
// Ruby version; Engine is built per-process.
type Engine struct {
	Layout          *Layout
	StringClassAddr uint64 // 0 if unresolved; path decoding falls back to "assume Array"
}

// NewEngine builds an Engine for one target process. stringClassAddr is
// the String class object's address, which the caller resolves through
// the rb_cString global when the binary has it, or 0 (path decoding
// only needs this for Ruby >=2.5.0; older layouts never read
// StringClassAddr).
func NewEngine(l *Layout, stringClassAddr uint64) *Engine {
	return &Engine{Layout: l, StringClassAddr: stringClassAddr}
}

// Walk reads one stack trace out of the target process.
// currentThreadAddrLocation is the address addrfinder.Find resolved: a
// pointer-to-pointer that, dereferenced once, gives the currently
// running thread (or execution context, for >=2.5.0).
func (e *Engine) Walk(h memory.ProcessHandle, currentThreadAddrLocation uintptr, now time.Time) (stacktrace.StackTrace, error) {
	l := e.Layout
	threadAddr, err := memory.ReadUintptr(h, currentThreadAddrLocation)
	if err != nil {
		return stacktrace.StackTrace{}, invalidAddressAt(currentThreadAddrLocation, err)
	}
	if threadAddr == 0 {
		return stacktrace.StackTrace{}, invalidAddressAt(currentThreadAddrLocation, fmt.Errorf("rubyvm: null current-thread pointer"))
	}

	stackAddr, err := memory.ReadUintptr(h, threadAddr+uintptr(l.StackOffset))
	if err != nil {
		return stacktrace.StackTrace{}, err
	}

	trace := stacktrace.StackTrace{Time: now, HasTime: true}
	if tid, ok, err := l.readThreadID(h, threadAddr); err == nil && ok {
		trace.ThreadID = tid
		trace.HasThreadID = true
	}

	// Degenerate case: a thread that exists but hasn't
	// started running bytecode yet has a null stack. Report it as a
	// single unknown C frame rather than an error.
	if stackAddr == 0 {
		trace.Trace = []stacktrace.StackFrame{stacktrace.UnknownCFunction()}
		return trace, nil
	}

	stackSize, err := memory.ReadUint64(h, threadAddr+uintptr(l.StackSizeOffset))
	if err != nil {
		return stacktrace.StackTrace{}, err
	}
	cfp, err := memory.ReadUintptr(h, threadAddr+uintptr(l.CFPOffset))
	if err != nil {
		return stacktrace.StackTrace{}, err
	}

	stackBase := stackAddr + uintptr(stackSize)*uintptr(defaultValueSize) - uintptr(l.CFPSize)
	if cfp == 0 || stackBase < cfp {
		return stacktrace.StackTrace{}, fmt.Errorf("rubyvm: torn read: cfp %#x outside stack span ending %#x", cfp, stackBase)
	}
	n := (int(stackBase) - int(cfp)) / int(l.CFPSize)

	frames := make([]stacktrace.StackFrame, 0, n+1)
	for i := 0; i <= n; i++ {
		cfpAddr := cfp + uintptr(i)*uintptr(l.CFPSize)
		iseq, err := memory.ReadUintptr(h, cfpAddr+uintptr(l.CFPIseqOffset))
		if err != nil {
			if i == 0 {
				return stacktrace.StackTrace{}, err
			}
			break
		}
		if iseq == 0 {
			// A C frame: no iseq to decode a name/line from.
			frames = append(frames, stacktrace.UnknownCFunction())
			continue
		}
		pc, err := memory.ReadUintptr(h, cfpAddr+uintptr(l.CFPPCOffset))
		if err != nil {
			if i == 0 {
				return stacktrace.StackTrace{}, err
			}
			break
		}
		if pc == 0 {
			continue
		}

		frame, err := e.decodeFrame(h, iseq, pc)
		if err != nil {
			if i == 0 {
				return stacktrace.StackTrace{}, err
			}
			// A single unreadable frame shouldn't sink an otherwise
			// good sample; best-effort truncate here instead.
			break
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		frames = append(frames, stacktrace.UnknownCFunction())
	}
	trace.Trace = frames
	return trace, nil
}

func invalidAddressAt(addr uintptr, cause error) error {
	return fmt.Errorf("rubyvm: %w", &memory.Error{Kind: memory.KindInvalidAddress, Addr: addr, Err: cause})
}

func (l *Layout) readThreadID(h memory.ProcessHandle, threadAddr uintptr) (uint64, bool, error) {
	switch l.ThreadKind {
	case ThreadStruct:
		if l.ThreadIDOffset == 0 {
			return 0, false, nil
		}
		tid, err := memory.ReadUint64(h, threadAddr+uintptr(l.ThreadIDOffset))
		if err != nil {
			return 0, false, err
		}
		return tid, true, nil
	case ExecutionContext:
		if l.ThreadPtrOffset == 0 {
			return 0, false, nil
		}
		threadPtr, err := memory.ReadUintptr(h, threadAddr+uintptr(l.ThreadPtrOffset))
		if err != nil || threadPtr == 0 {
			return 0, false, err
		}
		tid, err := memory.ReadUint64(h, threadPtr+uintptr(l.ThreadIDOffset))
		if err != nil {
			return 0, false, err
		}
		return tid, true, nil
	default:
		return 0, false, nil
	}
}

// decodeFrame turns one (iseq, pc) control-frame pair into a StackFrame:
// name, path, and the line number the pc currently points at.
func (e *Engine) decodeFrame(h memory.ProcessHandle, iseq, pc uintptr) (stacktrace.StackFrame, error) {
	l := e.Layout
	body := iseq
	if l.IseqBodyOffset != 0 {
		var err error
		body, err = memory.ReadUintptr(h, iseq+uintptr(l.IseqBodyOffset))
		if err != nil {
			return stacktrace.StackFrame{}, err
		}
	}

	iseqEncoded, err := memory.ReadUintptr(h, body+uintptr(l.IseqEncodedOffset))
	if err != nil {
		return stacktrace.StackFrame{}, err
	}
	if pc < iseqEncoded {
		return stacktrace.StackFrame{}, fmt.Errorf("rubyvm: torn read: pc %#x before iseq_encoded %#x", pc, iseqEncoded)
	}
	pos := uint64(pc-iseqEncoded) / uint64(defaultValueSize)
	if pos != 0 {
		pos--
	}

	lineno, err := l.lineno(h, body, pos)
	if err != nil {
		return stacktrace.StackFrame{}, err
	}

	name, relPath, absPath, hasAbsPath, err := e.location(h, iseq, body)
	if err != nil {
		return stacktrace.StackFrame{}, err
	}

	return stacktrace.StackFrame{
		Name:            name,
		RelativePath:    relPath,
		AbsolutePath:    absPath,
		HasAbsolutePath: hasAbsPath,
		Lineno:          uint32(lineno),
	}, nil
}

// lineno searches the iseq's line-info table for the largest entry
// whose position is <= pos, and returns its line number.
func (l *Layout) lineno(h memory.ProcessHandle, body uintptr, pos uint64) (uint64, error) {
	size, err := memory.ReadUint64(h, body+uintptr(l.LineTableSizeOffset))
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}
	tablePtr, err := memory.ReadUintptr(h, body+uintptr(l.LineTableOffset))
	if err != nil {
		return 0, err
	}
	if tablePtr == 0 {
		return 0, nil
	}

	switch l.LineInfoKind {
	case LineInfoEntries:
		return l.linenoEntries(h, tablePtr, size, pos)
	case LineInfoSplit:
		positionsPtr, err := memory.ReadUintptr(h, body+uintptr(l.LinePositionsOffset))
		if err != nil {
			return 0, err
		}
		return l.linenoSplit(h, tablePtr, positionsPtr, size, pos)
	default:
		return 0, fmt.Errorf("rubyvm: unknown line info kind %d", l.LineInfoKind)
	}
}

func (l *Layout) entryPosition(h memory.ProcessHandle, tablePtr uintptr, i uint64) (uint64, error) {
	addr := tablePtr + uintptr(i*l.LineEntry.Size) + uintptr(l.LineEntry.PositionOffset)
	if l.LineEntry.PositionSize == 4 {
		v, err := memory.ReadUint32(h, addr)
		return uint64(v), err
	}
	return memory.ReadUint64(h, addr)
}

func (l *Layout) entryLineNo(h memory.ProcessHandle, tablePtr uintptr, i uint64) (uint64, error) {
	v, err := memory.ReadUint32(h, tablePtr+uintptr(i*l.LineEntry.Size)+uintptr(l.LineEntry.LineNoOffset))
	return uint64(v), err
}

// linenoEntries binary-searches a table of {position, line_no} entries.
func (l *Layout) linenoEntries(h memory.ProcessHandle, tablePtr uintptr, size, pos uint64) (uint64, error) {
	lo, hi := uint64(0), size-1
	bestLine := uint64(0)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		p, err := l.entryPosition(h, tablePtr, mid)
		if err != nil {
			return 0, err
		}
		if p <= pos {
			line, err := l.entryLineNo(h, tablePtr, mid)
			if err != nil {
				return 0, err
			}
			bestLine = line
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
	}
	return bestLine, nil
}

// linenoSplit binary-searches the positions[] array in lockstep with
// the parallel entries[].line_no array, for Ruby >=2.6.0's split table.
func (l *Layout) linenoSplit(h memory.ProcessHandle, tablePtr, positionsPtr uintptr, size, pos uint64) (uint64, error) {
	lo, hi := uint64(0), size-1
	bestIdx, found := uint64(0), false
	for lo <= hi {
		mid := lo + (hi-lo)/2
		p, err := memory.ReadUint32(h, positionsPtr+uintptr(mid*4))
		if err != nil {
			return 0, err
		}
		if uint64(p) <= pos {
			bestIdx, found = mid, true
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
	}
	if !found {
		return 0, nil
	}
	return l.entryLineNo(h, tablePtr, bestIdx)
}
