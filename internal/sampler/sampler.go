// Package sampler runs the phase-locked sampling loop: attach once,
// then read one stack trace per period, forever or until told to stop.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/addrfinder"
	"github.com/rbspy/rbspy-sub000/internal/binparse"
	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/procmap"
	"github.com/rbspy/rbspy-sub000/internal/rubyvm"
	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
	"github.com/rbspy/rbspy-sub000/internal/version"
)

// Options configures one Sampler.
type Options struct {
	SampleRate  int  // Hz
	LockProcess bool // ptrace-suspend the target for each sample

	// MaxErrors and MaxErrorRatio gate when the sampler gives up
	// rather than keep limping along on a target that's gone bad:
	// abort once more than MaxErrors samples have failed AND failures
	// are more than MaxErrorRatio of the total.
	MaxErrors     int
	MaxErrorRatio float64

	// ForceVersion skips automatic Ruby version detection; empty means
	// detect from the target's ruby_version symbol.
	ForceVersion string
}

// DefaultOptions returns the conservative error-budget defaults used
// when a caller doesn't need to tune them.
func DefaultOptions() Options {
	return Options{SampleRate: 100, LockProcess: true, MaxErrors: 20, MaxErrorRatio: 0.5}
}

// maxLockRetries bounds how many times sampleOnce retries a transient
// process-lock failure before counting the sample as failed.
const maxLockRetries = 20

// maxConsecutiveReinitFailures bounds consecutive current-thread-address
// reinit failures: a second failure in a row means the target is gone
// bad rather than mid-re-exec, and sampleOnce gives up instead of
// retrying forever.
const maxConsecutiveReinitFailures = 2

// Sampler walks one process's Ruby stack on a timer.
type Sampler struct {
	handle   memory.ProcessHandle
	opts     Options
	ruby     version.Version
	bin      *binparse.BinaryInfo
	binMap   procmap.MapRange
	engine   *rubyvm.Engine
	location uintptr

	total, errors int

	reinitCount        int // cumulative count of triggered reinits
	consecutiveReinits int // consecutive reinit failures since the last success
	timingErrors       int // samples already late when due
}

// ReinitCount reports how many times the current-thread address has
// been re-resolved from scratch since the sampler started, e.g. the
// target re-exec'd into a different Ruby binary.
func (s *Sampler) ReinitCount() int { return s.reinitCount }

// TimingErrors reports how many samples were already past due when
// Run woke up to take them.
func (s *Sampler) TimingErrors() int { return s.timingErrors }

// Total reports how many samples Run has attempted so far.
func (s *Sampler) Total() int { return s.total }

// versionDetectRetries and versionDetectInterval bound how long New
// keeps retrying to find a mapped Ruby binary with a readable
// ruby_version symbol: under rbenv/chruby the target process exec's
// through a shim, so the right binary may not be mapped yet on the
// first few attempts.
const (
	versionDetectRetries  = 100
	versionDetectInterval = time.Millisecond
)

// New inspects the target once (maps, binary, Ruby version, thread
// address) and builds a Sampler ready to run.
func New(h memory.ProcessHandle, opts Options) (*Sampler, error) {
	bin, rubyMap, v, err := detectRubyBinary(h, opts)
	if err != nil {
		return nil, err
	}

	layout, ok := rubyvm.Select(v)
	if !ok {
		return nil, fmt.Errorf("sampler: unsupported Ruby version %s", v)
	}

	location, err := addrfinder.Find(h, bin, rubyMap, v)
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}

	// rb_cString is a VALUE global: the String class object's address is
	// the value stored there, not the symbol's own address.
	var stringClassAddr uint64
	if addr, ok := addrfinder.StringClassAddr(bin, rubyMap); ok {
		if klass, err := memory.ReadUint64(h, uintptr(addr)); err == nil {
			stringClassAddr = klass
		}
	}

	return &Sampler{
		handle:   h,
		opts:     opts,
		ruby:     v,
		bin:      bin,
		binMap:   rubyMap,
		engine:   rubyvm.NewEngine(layout, stringClassAddr),
		location: location,
	}, nil
}

// detectRubyBinary locates the target's Ruby (or libruby) mapping and
// reads its version, making up to versionDetectRetries attempts a
// versionDetectInterval apart, each from scratch (fresh maps, fresh
// binary open), while the mapping or the ruby_version symbol isn't
// there yet. With
// opts.ForceVersion set, no retry is needed: the maps/binary are still
// resolved once, but version detection is skipped entirely.
func detectRubyBinary(h memory.ProcessHandle, opts Options) (*binparse.BinaryInfo, procmap.MapRange, version.Version, error) {
	var lastErr error
	for attempt := 0; attempt < versionDetectRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(versionDetectInterval)
		}

		maps, err := h.EnumerateMaps()
		if err != nil {
			lastErr = err
			continue
		}
		rubyMap, ok := procmap.FindExecutable(maps, "ruby")
		if !ok {
			rubyMap, ok = procmap.FindExecutable(maps, "libruby")
		}
		if !ok {
			lastErr = fmt.Errorf("pid %d has no ruby or libruby mapping", h.PID())
			continue
		}

		bin, err := h.OpenBinary(rubyMap)
		if err != nil {
			lastErr = err
			continue
		}

		if opts.ForceVersion != "" {
			v, err := version.Parse(opts.ForceVersion)
			if err != nil {
				return nil, procmap.MapRange{}, version.Version{}, fmt.Errorf("sampler: force-version: %w", err)
			}
			return bin, rubyMap, v, nil
		}

		v, err := version.Read(h, bin, rubyMap)
		if err != nil {
			lastErr = err
			continue
		}
		return bin, rubyMap, v, nil
	}
	return nil, procmap.MapRange{}, version.Version{}, fmt.Errorf("sampler: pid %d: ruby_version unreadable after %d attempts: %w", h.PID(), versionDetectRetries, lastErr)
}

// Version reports the Ruby version detected in New.
func (s *Sampler) Version() version.Version { return s.ruby }

// BinaryPath is the path of the Ruby (or libruby) binary symbols were
// resolved against.
func (s *Sampler) BinaryPath() string { return s.bin.Path }

// ThreadLocation is the address addrfinder resolved for the currently
// running thread/execution-context pointer.
func (s *Sampler) ThreadLocation() uintptr { return s.location }

// Sample takes a single stack trace, outside of the Run loop's timing.
// Used for one-shot snapshots.
func (s *Sampler) Sample() (stacktrace.StackTrace, error) { return s.sampleOnce() }

// Run samples at opts.SampleRate until ctx is cancelled, an unrecoverable
// error occurs, or the error budget is exhausted, sending each
// successful trace to out. out should be a bounded channel: Run blocks
// on a full channel exactly as long as ctx stays open, giving a slow
// consumer natural backpressure instead of an unbounded queue.
func (s *Sampler) Run(ctx context.Context, out chan<- stacktrace.StackTrace) error {
	clock := SampleClock{Start: time.Now(), Period: time.Second / time.Duration(s.opts.SampleRate)}

	for n := uint64(0); ; n++ {
		late := clock.SleepUntil(n)
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		trace, err := s.sampleOnce()
		s.total++
		if late {
			s.timingErrors++
		}
		if err != nil {
			s.errors++
			if s.total > 0 && s.errors > s.opts.MaxErrors && float64(s.errors)/float64(s.total) > s.opts.MaxErrorRatio {
				return fmt.Errorf("sampler: pid %d: error budget exceeded (%d/%d samples failed): %w", s.handle.PID(), s.errors, s.total, err)
			}
			continue
		}

		select {
		case out <- trace:
		case <-ctx.Done():
			return nil
		}
	}
}

// sampleOnce takes a single sample, optionally suspending the target
// for the duration of the read, and transparently re-resolving the
// current-thread address once if it's gone stale — e.g. the GC moved
// things enough to invalidate a cached BSS-scanned address.
func (s *Sampler) sampleOnce() (stacktrace.StackTrace, error) {
	if s.opts.LockProcess {
		unlock, err := s.lockWithRetry()
		if err != nil {
			return stacktrace.StackTrace{}, err
		}
		defer unlock.Unlock()
	}

	trace, err := s.engine.Walk(s.handle, s.location, time.Now())
	if err != nil && isInvalidAddress(err) {
		if s.consecutiveReinits >= maxConsecutiveReinitFailures {
			return stacktrace.StackTrace{}, fmt.Errorf("sampler: pid %d: reinit abandoned after %d consecutive failures: %w", s.handle.PID(), s.consecutiveReinits, err)
		}
		s.reinitCount++
		if loc, rerr := addrfinder.Find(s.handle, s.bin, s.binMap, s.ruby); rerr == nil {
			s.location = loc
			s.consecutiveReinits = 0
			trace, err = s.engine.Walk(s.handle, s.location, time.Now())
		} else {
			s.consecutiveReinits++
			if s.consecutiveReinits >= maxConsecutiveReinitFailures {
				return stacktrace.StackTrace{}, fmt.Errorf("sampler: pid %d: gave up after %d consecutive reinit failures: %w", s.handle.PID(), s.consecutiveReinits, rerr)
			}
		}
	}
	if err != nil {
		return stacktrace.StackTrace{}, err
	}
	return trace.WithPID(s.handle.PID()), nil
}

// lockWithRetry acquires the suspend lock, retrying up to
// maxLockRetries times on a transient KindProcessNotLocked failure
// before surfacing it as a per-sample error.
func (s *Sampler) lockWithRetry() (memory.Unlocker, error) {
	var err error
	for attempt := 0; attempt <= maxLockRetries; attempt++ {
		var unlock memory.Unlocker
		unlock, err = s.handle.Lock()
		if err == nil {
			return unlock, nil
		}
		if !isProcessNotLocked(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("sampler: pid %d: lock failed after %d retries: %w", s.handle.PID(), maxLockRetries, err)
}

func isInvalidAddress(err error) bool {
	var memErr *memory.Error
	if errors.As(err, &memErr) {
		return memErr.Kind == memory.KindInvalidAddress
	}
	return false
}

func isProcessNotLocked(err error) bool {
	var memErr *memory.Error
	if errors.As(err, &memErr) {
		return memErr.Kind == memory.KindProcessNotLocked
	}
	return false
}
