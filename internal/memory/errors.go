package memory

import (
	"errors"
	"fmt"
)

// Kind classifies a memory-copy error so callers can decide retry vs.
// terminal vs. fatal without string matching.
type Kind int

const (
	// KindOther covers I/O errors that don't map to one of the named
	// kinds below.
	KindOther Kind = iota
	// KindProcessEnded means the OS reports the target is gone
	// (errno 3 on Linux, 60 on macOS, 299 on Windows). Terminal.
	KindProcessEnded
	// KindPermissionDenied means EACCES/EPERM. Fatal to the session.
	KindPermissionDenied
	// KindInvalidAddress means EFAULT: the address wasn't mapped.
	KindInvalidAddress
	// KindRequestTooLarge means the caller asked for more than
	// MaxReadSize bytes, which usually indicates pointer corruption.
	KindRequestTooLarge
	// KindInvalidUTF8 means a decoded Ruby string wasn't valid UTF-8.
	KindInvalidUTF8
	// KindProcessNotLocked means the suspend lock couldn't be acquired.
	KindProcessNotLocked
	// KindTornRead means an invariant check inside the walker failed in
	// a way that's consistent with reading a struct mid-mutation.
	KindTornRead
)

// MaxReadSize caps any single remote read. 20 MiB matches the rbspy
// implementation's sanity bound for "this pointer is obviously corrupt".
const MaxReadSize = 20 << 20

// Error is the error type every remote-memory operation returns.
type Error struct {
	Kind Kind
	// Addr is the address involved, when relevant (0 otherwise). For
	// KindRequestTooLarge it holds the requested length instead.
	Addr uintptr
	// Msg is a human-readable detail, mandatory for KindTornRead and
	// KindOther, optional elsewhere.
	Msg string
	// Err wraps the underlying OS error, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProcessEnded:
		return "process isn't running"
	case KindPermissionDenied:
		return "permission denied reading process memory; if you're not running as root, try again with sudo, or with --cap-add=SYS_PTRACE under Docker"
	case KindInvalidAddress:
		return fmt.Sprintf("tried to read invalid memory address %#x", e.Addr)
	case KindRequestTooLarge:
		return fmt.Sprintf("too much memory requested when copying: %d bytes", e.Addr)
	case KindInvalidUTF8:
		return "tried to read invalid Ruby string (not valid UTF-8)"
	case KindProcessNotLocked:
		return "couldn't lock the process"
	case KindTornRead:
		return "torn read: " + e.Msg
	default:
		if e.Err != nil {
			return fmt.Sprintf("copy error at %#x: %v", e.Addr, e.Err)
		}
		return "copy error: " + e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers compare by Kind via errors.Is(err, memory.ProcessEnded).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel errors for errors.Is comparisons; only Kind is compared.
var (
	ProcessEnded      = &Error{Kind: KindProcessEnded}
	PermissionDenied  = &Error{Kind: KindPermissionDenied}
	RequestTooLarge   = &Error{Kind: KindRequestTooLarge}
	ProcessNotLocked  = &Error{Kind: KindProcessNotLocked}
	InvalidUTF8String = &Error{Kind: KindInvalidUTF8}
)

func addrError(kind Kind, addr uintptr) error {
	return &Error{Kind: kind, Addr: addr}
}

func tornRead(format string, args ...any) error {
	return &Error{Kind: KindTornRead, Msg: fmt.Sprintf(format, args...)}
}

// classifyErrno maps a raw OS error encountered during a remote read into
// our taxonomy.
func classifyErrno(addr uintptr, err error) error {
	if err == nil {
		return nil
	}
	if isErrno(err, errENOENT) || isErrno(err, errESRCH) {
		return &Error{Kind: KindProcessEnded, Addr: addr, Err: err}
	}
	if isErrno(err, errEPERM) || isErrno(err, errEACCES) {
		return &Error{Kind: KindPermissionDenied, Addr: addr, Err: err}
	}
	if isErrno(err, errEFAULT) {
		return &Error{Kind: KindInvalidAddress, Addr: addr, Err: err}
	}
	return &Error{Kind: KindOther, Addr: addr, Err: err}
}

// IsInvalidAddress reports whether err is a KindInvalidAddress error for
// addr specifically — used by the sampler to decide whether to reinit
// its cached thread-location address.
func IsInvalidAddress(err error, addr uintptr) bool {
	var me *Error
	if !errors.As(err, &me) {
		return false
	}
	return me.Kind == KindInvalidAddress && me.Addr == addr
}
