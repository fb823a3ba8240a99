// Package supervisor fans a single recording session out across a
// process tree: watch for new descendants of the root PID, start a
// sampler on each one discovered, and stop the whole session once the
// root process exits.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
	"github.com/rbspy/rbspy-sub000/internal/sampler"
	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

// NewHandle builds a memory.ProcessHandle for a PID. Tests substitute a
// fake; production wires memory.NewLiveProcess.
type NewHandle func(pid int) (memory.ProcessHandle, error)

// Options configures a supervised, possibly multi-process, run.
type Options struct {
	Root             int
	WithSubprocesses bool
	PollInterval     time.Duration // how often to re-scan for new descendants
	Sampler          sampler.Options
}

func DefaultOptions(root int) Options {
	return Options{Root: root, WithSubprocesses: false, PollInterval: time.Second, Sampler: sampler.DefaultOptions()}
}

// Supervisor runs one sampler per watched process, merging their output
// onto a single channel.
type Supervisor struct {
	opts      Options
	newHandle NewHandle

	mu   sync.Mutex
	seen map[int]bool
}

func New(opts Options, newHandle NewHandle) *Supervisor {
	return &Supervisor{opts: opts, newHandle: newHandle, seen: make(map[int]bool)}
}

// Run blocks until ctx is cancelled or the root process exits,
// streaming every sampled trace (from the root and, if
// WithSubprocesses is set, any descendant Ruby process) to out.
func (s *Supervisor) Run(ctx context.Context, out chan<- stacktrace.StackTrace) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once
	record := func(err error) {
		if err != nil {
			errOnce.Do(func() { firstErr = err })
		}
	}

	s.startWorker(ctx, &wg, s.opts.Root, out, record)

	if s.opts.WithSubprocesses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.watchDescendants(ctx, &wg, out, record)
		}()
	}

	// The session ends when the root process is gone, even if
	// subprocess samplers are still technically running.
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watchRootExit(ctx, cancel)
	}()

	wg.Wait()
	return firstErr
}

func (s *Supervisor) watchRootExit(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !procmap.Exists(s.opts.Root) {
				cancel()
				return
			}
		}
	}
}

func (s *Supervisor) watchDescendants(ctx context.Context, wg *sync.WaitGroup, out chan<- stacktrace.StackTrace, record func(error)) {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			descendants, err := procmap.Descendants(s.opts.Root)
			if err != nil {
				continue
			}
			for _, pid := range descendants {
				if s.markSeen(pid) {
					s.startWorker(ctx, wg, pid, out, record)
				}
			}
		}
	}
}

func (s *Supervisor) markSeen(pid int) (firstTime bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[pid] {
		return false
	}
	s.seen[pid] = true
	return true
}

func (s *Supervisor) startWorker(ctx context.Context, wg *sync.WaitGroup, pid int, out chan<- stacktrace.StackTrace, record func(error)) {
	s.markSeen(pid)
	wg.Add(1)
	go func() {
		defer wg.Done()
		h, err := s.newHandle(pid)
		if err != nil {
			// The process may have exited between discovery and attach;
			// that's not a session-ending error.
			return
		}
		smp, err := sampler.New(h, s.opts.Sampler)
		if err != nil {
			return
		}
		if err := smp.Run(ctx, out); err != nil {
			record(fmt.Errorf("supervisor: pid %d: %w", pid, err))
		}
	}()
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.opts.PollInterval > 0 {
		return s.opts.PollInterval
	}
	return time.Second
}
