// Package rbspy is the facade other packages are wired through: the
// three entry points (Record, Snapshot, Inspect) that the CLI and any
// embedder calls, wiring together memory, addrfinder, rubyvm, sampler,
// and supervisor without exposing their internals.
package rbspy

import "time"

// Config describes a sampling run against a single PID.
type Config struct {
	PID int

	// SampleRate is samples per second. Zero means 100, matching
	// sampler.DefaultOptions.
	SampleRate int

	// LockProcess ptrace-suspends the target for each sample, trading
	// sampling-induced overhead for freedom from torn reads. Nil means
	// true: locked is the default, matching sampler.DefaultOptions.
	LockProcess *bool

	// WithSubprocesses extends sampling to every descendant process
	// discovered while sampling runs.
	WithSubprocesses bool

	// Duration bounds Record; zero means "run until Done fires or the
	// root process exits".
	Duration time.Duration

	// ForceVersion skips automatic version detection, for targets
	// whose version string can't be read (e.g. a coredump with a
	// stripped ruby_version symbol). Empty means auto-detect.
	ForceVersion string

	// Done, if set, lets a caller stop Record early (e.g. on SIGINT).
	Done <-chan struct{}
}

func (c Config) sampleRate() int {
	if c.SampleRate > 0 {
		return c.SampleRate
	}
	return 100
}

func (c Config) lockProcess() bool {
	if c.LockProcess == nil {
		return true
	}
	return *c.LockProcess
}
