//go:build linux

package memory

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
)

// LiveProcess is the Linux ProcessHandle: reads go through
// /proc/<pid>/mem (process_vm_readv's well-trodden Go equivalent),
// suspension goes through ptrace attach/detach on a dedicated, pinned OS
// thread, matching how ptrace's per-thread ownership rules are usually
// worked around in Go (see e.g. gvisor's systrap subprocess and delve).
type LiveProcess struct {
	pid    int
	memFile *os.File
	ptrace *ptraceWorker
}

// NewLiveProcess attaches to pid, opening /proc/<pid>/mem for reads.
// Opening the file doesn't itself require the target to be stopped.
func NewLiveProcess(pid int) (*LiveProcess, error) {
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return nil, classifyOpenErr(err)
	}
	return &LiveProcess{
		pid:     pid,
		memFile: f,
		ptrace:  newPtraceWorker(pid),
	}, nil
}

func classifyOpenErr(err error) error {
	if os.IsPermission(err) {
		return &Error{Kind: KindPermissionDenied, Err: err}
	}
	if os.IsNotExist(err) {
		return &Error{Kind: KindProcessEnded, Err: err}
	}
	return &Error{Kind: KindOther, Err: err}
}

func (p *LiveProcess) PID() int { return p.pid }

// Read implements ProcessHandle.Read via pread(2) on /proc/<pid>/mem,
// which lets us do a single positioned read instead of PTRACE_PEEKDATA's
// word-at-a-time dance.
func (p *LiveProcess) Read(addr uintptr, length int) ([]byte, error) {
	if length > MaxReadSize {
		return nil, addrError(KindRequestTooLarge, uintptr(length))
	}
	buf := make([]byte, length)
	n, err := p.memFile.ReadAt(buf, int64(addr))
	if err != nil && n == 0 {
		return nil, classifyReadErr(addr, err)
	}
	return buf[:n], nil
}

func classifyReadErr(addr uintptr, err error) error {
	if os.IsPermission(err) {
		return &Error{Kind: KindPermissionDenied, Addr: addr, Err: err}
	}
	if os.IsNotExist(err) {
		return &Error{Kind: KindProcessEnded, Addr: addr, Err: err}
	}
	// /proc/<pid>/mem returns EIO for unmapped ranges, which is this
	// reader's equivalent of EFAULT.
	if strings.Contains(err.Error(), "input/output error") {
		return &Error{Kind: KindInvalidAddress, Addr: addr, Err: err}
	}
	return classifyErrno(addr, err)
}

func (p *LiveProcess) Exists() bool {
	return procmap.Exists(p.pid)
}

func (p *LiveProcess) EnumerateMaps() ([]procmap.MapRange, error) {
	maps, err := procmap.Enumerate(p.pid)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ProcessEnded
		}
		return nil, err
	}
	return maps, nil
}

func (p *LiveProcess) OpenBinary(m procmap.MapRange) (*binparse.BinaryInfo, error) {
	return binparse.Load(m.Pathname)
}

func (p *LiveProcess) ListThreads() ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", p.pid))
	if err != nil {
		return nil, classifyOpenErr(err)
	}
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err == nil {
			out = append(out, tid)
		}
	}
	return out, nil
}

// Lock stops the target with PTRACE_ATTACH, waits for it to actually
// stop, and returns an Unlocker that resumes it with PTRACE_DETACH.
// Holding the lock should be brief: the window of inconsistent reads
// this closes is also the window the target can't run.
func (p *LiveProcess) Lock() (Unlocker, error) {
	if err := p.ptrace.attach(); err != nil {
		return nil, err
	}
	return &ptraceUnlock{worker: p.ptrace}, nil
}

type ptraceUnlock struct {
	worker *ptraceWorker
}

func (u *ptraceUnlock) Unlock() error {
	return u.worker.detach()
}

// ptraceWorker pins ptrace calls to a single OS thread, since Linux
// requires the thread that attached to also be the thread that detaches.
type ptraceWorker struct {
	pid  int
	reqs chan ptraceReq
}

type ptraceReq struct {
	attach bool
	result chan error
}

func newPtraceWorker(pid int) *ptraceWorker {
	w := &ptraceWorker{pid: pid, reqs: make(chan ptraceReq)}
	go w.run()
	return w
}

func (w *ptraceWorker) run() {
	lockOSThread()
	defer unlockOSThread()

	for req := range w.reqs {
		var err error
		if req.attach {
			err = unix.PtraceAttach(w.pid)
			if err == nil {
				var ws unix.WaitStatus
				_, werr := unix.Wait4(w.pid, &ws, 0, nil)
				if werr != nil {
					err = werr
				}
			}
		} else {
			err = unix.PtraceDetach(w.pid)
		}
		req.result <- err
	}
}

func (w *ptraceWorker) attach() error {
	result := make(chan error, 1)
	w.reqs <- ptraceReq{attach: true, result: result}
	err := <-result
	if err != nil {
		return classifyPtraceErr(err)
	}
	return nil
}

func (w *ptraceWorker) detach() error {
	result := make(chan error, 1)
	w.reqs <- ptraceReq{attach: false, result: result}
	return <-result
}

func classifyPtraceErr(err error) error {
	if isErrno(err, errESRCH) {
		return ProcessEnded
	}
	if isErrno(err, errEPERM) {
		return ProcessNotLocked
	}
	return &Error{Kind: KindOther, Err: err}
}
