package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rbspy/rbspy-sub000/internal/memory"
	"github.com/rbspy/rbspy-sub000/internal/sampler"
	"github.com/rbspy/rbspy-sub000/internal/stacktrace"
)

func TestMarkSeenOnlyFirstTime(t *testing.T) {
	s := New(DefaultOptions(1), nil)
	if !s.markSeen(42) {
		t.Error("markSeen should report true the first time a pid is seen")
	}
	if s.markSeen(42) {
		t.Error("markSeen should report false on a repeat pid")
	}
	if !s.markSeen(43) {
		t.Error("markSeen should report true for a distinct pid")
	}
}

func TestPollIntervalDefault(t *testing.T) {
	s := New(Options{}, nil)
	if got := s.pollInterval(); got != time.Second {
		t.Errorf("pollInterval() = %v, want 1s default", got)
	}
	s2 := New(Options{PollInterval: 5 * time.Millisecond}, nil)
	if got := s2.pollInterval(); got != 5*time.Millisecond {
		t.Errorf("pollInterval() = %v, want the configured 5ms", got)
	}
}

// TestRunEndsWhenRootMissing exercises Run against a pid that doesn't
// exist: watchRootExit should detect that immediately and cancel the
// session without ever needing a working newHandle.
func TestRunEndsWhenRootMissing(t *testing.T) {
	const missingPID = 999999999
	opts := Options{Root: missingPID, PollInterval: 5 * time.Millisecond, Sampler: sampler.DefaultOptions()}
	newHandle := func(pid int) (memory.ProcessHandle, error) {
		return nil, errors.New("no such process")
	}
	s := New(opts, newHandle)

	out := make(chan stacktrace.StackTrace, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil (root never existed, nothing to fail on)", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run should have returned once watchRootExit found the root pid missing")
	}
}
