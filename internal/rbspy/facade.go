package rbspy

import (
	"context"
	"fmt"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/sampler"
	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
	"github.com/rbspy/rbspy-sub000/internal/supervisor"
)

func (c Config) samplerOptions() sampler.Options {
	opts := sampler.DefaultOptions()
	opts.SampleRate = c.sampleRate()
	opts.LockProcess = c.lockProcess()
	opts.ForceVersion = c.ForceVersion
	return opts
}

// Snapshot takes a single stack trace from cfg.PID and returns
// immediately, without running a sampling loop.
func Snapshot(cfg Config) (stacktrace.StackTrace, error) {
	h, err := newHandle(cfg.PID)
	if err != nil {
		return stacktrace.StackTrace{}, err
	}
	smp, err := sampler.New(h, cfg.samplerOptions())
	if err != nil {
		return stacktrace.StackTrace{}, err
	}
	return smp.Sample()
}

// Record runs a sampling session to completion (bounded by cfg.Duration
// and/or cfg.Done, or until the root process exits) and returns every
// trace collected.
func Record(cfg Config) ([]stacktrace.StackTrace, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Duration > 0 {
		timer := time.AfterFunc(cfg.Duration, cancel)
		defer timer.Stop()
	}
	if cfg.Done != nil {
		go func() {
			select {
			case <-cfg.Done:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	supOpts := supervisor.DefaultOptions(cfg.PID)
	supOpts.WithSubprocesses = cfg.WithSubprocesses
	supOpts.Sampler = cfg.samplerOptions()
	sup := supervisor.New(supOpts, newHandle)

	// A bounded channel gives backpressure: if nothing drains traces
	// fast enough, the samplers block rather than piling up samples in
	// unbounded memory.
	out := make(chan stacktrace.StackTrace, 4096)
	runErr := make(chan error, 1)
	go func() {
		defer close(out)
		runErr <- sup.Run(ctx, out)
	}()

	var traces []stacktrace.StackTrace
	for t := range out {
		traces = append(traces, t)
	}
	if err := <-runErr; err != nil {
		return traces, fmt.Errorf("rbspy: %w", err)
	}
	return traces, nil
}

// ProcessInfo is what Inspect reports about a target, for `rbspy
// inspect`-style diagnostics.
type ProcessInfo struct {
	PID               int
	RubyVersion       string
	BinaryPath        string
	ThreadLocation    uintptr
}

// Inspect resolves everything Record/Snapshot would need against
// cfg.PID, without taking a sample, and reports what it found.
func Inspect(cfg Config) (ProcessInfo, error) {
	h, err := newHandle(cfg.PID)
	if err != nil {
		return ProcessInfo{}, err
	}
	smp, err := sampler.New(h, cfg.samplerOptions())
	if err != nil {
		return ProcessInfo{}, err
	}
	return ProcessInfo{
		PID:            cfg.PID,
		RubyVersion:    smp.Version().String(),
		BinaryPath:     smp.BinaryPath(),
		ThreadLocation: smp.ThreadLocation(),
	}, nil
}

// newHandle is replaced by platform-specific files with the real
// process-handle constructor (memory.NewLiveProcess on Linux).
var newHandle func(pid int) (memory.ProcessHandle, error)
