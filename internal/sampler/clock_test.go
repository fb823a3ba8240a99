package sampler

import (
	"testing"
	"time"
)

func TestNthSample(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := SampleClock{Start: start, Period: 10 * time.Millisecond}

	if got := c.NthSample(0); !got.Equal(start) {
		t.Errorf("NthSample(0) = %v, want %v", got, start)
	}
	want := start.Add(100 * time.Millisecond)
	if got := c.NthSample(10); !got.Equal(want) {
		t.Errorf("NthSample(10) = %v, want %v", got, want)
	}
}

func TestNthSamplePhaseLocked(t *testing.T) {
	// Samples are phase-locked to Start, not to when the previous one
	// actually ran: a late sample N doesn't shift when N+1 is due.
	start := time.Now()
	c := SampleClock{Start: start, Period: 5 * time.Millisecond}
	first := c.NthSample(1)
	second := c.NthSample(2)
	if second.Sub(first) != 5*time.Millisecond {
		t.Errorf("samples should stay exactly one Period apart regardless of jitter")
	}
}

func TestSleepUntilPastDueReturnsImmediately(t *testing.T) {
	c := SampleClock{Start: time.Now().Add(-time.Hour), Period: time.Millisecond}
	done := make(chan bool, 1)
	go func() {
		done <- c.SleepUntil(0)
	}()
	select {
	case late := <-done:
		if !late {
			t.Error("SleepUntil should report late=true for a past-due sample")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("SleepUntil should return immediately for a past-due sample")
	}
}

func TestSleepUntilNotYetDueReportsNotLate(t *testing.T) {
	c := SampleClock{Start: time.Now().Add(10 * time.Millisecond), Period: time.Millisecond}
	if late := c.SleepUntil(0); late {
		t.Error("SleepUntil should report late=false when it had to wait")
	}
}
